package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL targets a running server. When empty the suite boots
	// an in-process server on an in-memory store.
	ServerURL string `envconfig:"E2E_SERVER_URL"`
	// E2E_HEALTH_ADDR is the gRPC health address of that server. When set,
	// the suite waits for SERVING before the first scenario.
	HealthAddr string `envconfig:"E2E_HEALTH_ADDR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_DEBUG_FRAMES logs every websocket frame received
	DebugFrames      bool          `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	MaxContentLength int           `envconfig:"E2E_MAX_CONTENT_LENGTH" default:"500"`
	FrameTimeout     time.Duration `envconfig:"E2E_FRAME_TIMEOUT" default:"3s"`
	// QuietPeriod is how long a client must stay silent to assert that
	// nothing was broadcast.
	QuietPeriod time.Duration `envconfig:"E2E_QUIET_PERIOD" default:"300ms"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
