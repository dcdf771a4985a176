package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"kutter/contract"

	"github.com/shirou/gopsutil/process"
)

// Snapshot is one telemetry sample of the chat process.
type Snapshot struct {
	Connections int
	Goroutines  int
	RSS         uint64
	CPUPercent  float64
}

// TelemetryWorker periodically logs the number of live connections and
// the resource usage of the process.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	registry       contract.IRegistry
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, registry contract.IRegistry) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		registry:       registry,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot, err := w.Sample(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Telemetry",
				"connections", snapshot.Connections,
				"goroutines", snapshot.Goroutines,
				"rss_bytes", snapshot.RSS,
				"cpu_percent", snapshot.CPUPercent)
		}
	}
}

// Sample reads the registry size and the process memory and CPU usage.
func (w *TelemetryWorker) Sample(p *process.Process) (Snapshot, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return Snapshot{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Connections: w.registry.Len(),
		Goroutines:  runtime.NumGoroutine(),
		RSS:         memInfo.RSS,
		CPUPercent:  cpuPercent,
	}, nil
}
