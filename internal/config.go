package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=8080"`
	AdminPort  int    `env:"ADMIN_PORT,default=8081"`
	HealthPort int    `env:"HEALTH_PORT,default=8082"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`

	MaxContentLength        int           `env:"MAX_CONTENT_LENGTH,default=500"`
	HistoryLimit            int           `env:"HISTORY_LIMIT,default=50"`
	IngressQueueSize        int           `env:"INGRESS_QUEUE_SIZE,default=32"`
	ConnectionBufferSize    int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	AuthTimeout             time.Duration `env:"AUTH_TIMEOUT,default=5s"`
	PersistenceTimeout      time.Duration `env:"PERSISTENCE_TIMEOUT,default=5s"`
	SinkTimeout             time.Duration `env:"SINK_TIMEOUT,default=1s"`
	SequenceMaxAttempts     int           `env:"SEQUENCE_MAX_ATTEMPTS,default=3"`
	RequireMembershipToJoin bool          `env:"REQUIRE_MEMBERSHIP_TO_JOIN,default=true"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=*"`

	CensoredWords    string `env:"CENSORED_WORDS"`
	CensoredWordsDir string `env:"CENSORED_WORDS_DIR"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`

	BufferSize        int           `env:"BUFFER_SIZE,default=256"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	HealthInterval    time.Duration `env:"HEALTH_INTERVAL,default=5s"`
	SearchBatchSize   int           `env:"SEARCH_BATCH_SIZE,default=64"`
	SearchFlushDelay  time.Duration `env:"SEARCH_FLUSH_DELAY,default=500ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	SecureCookie      bool          `env:"SECURE_COOKIE,default=false"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitList parses comma separated settings such as ALLOWED_ORIGINS.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
