package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsProvider returns a flat snapshot of in-memory counters.
type StatsProvider func() map[string]any

// TelemetryWorker periodically logs the runtime counters together with the
// resource usage of the process.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	stats    StatsProvider
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration, stats StatsProvider) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, stats: stats}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attrs := []any{}
			for k, v := range w.stats() {
				attrs = append(attrs, k, v)
			}
			if self, err := SelfStats(p); err == nil {
				attrs = append(attrs, "rss_bytes", self.RSS, "cpu_percent", self.CPUPercent, "status", self.Status)
			} else {
				w.log.Debug("Failed to collect self stats", "error", err)
			}
			w.log.Info("Telemetry", attrs...)
		}
	}
}

type ProcessStats struct {
	RSS        uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Status     string  `json:"status"`
}

// SelfStats retrieves memory, CPU and OS status of the given process.
func SelfStats(p *process.Process) (ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{RSS: memInfo.RSS, CPUPercent: cpuPercent, Status: status}, nil
}
