package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"video2tool/contract"
	"video2tool/observability"
	"video2tool/runtime"
)

const defaultSampleInterval = 5 * time.Second

// TelemetryWorker periodically samples the collaboration layer and the
// process itself, and publishes the snapshot to the monitor.
type TelemetryWorker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	membership  contract.IMembership
	broadcaster *runtime.Broadcaster
	monitor     *observability.Monitor
	interval    time.Duration
}

func NewTelemetryWorker(
	log *slog.Logger,
	registry contract.IRegistry,
	membership contract.IMembership,
	broadcaster *runtime.Broadcaster,
	monitor *observability.Monitor,
	interval time.Duration,
) *TelemetryWorker {
	if interval == 0 {
		interval = defaultSampleInterval
	}
	return &TelemetryWorker{
		log:         log,
		registry:    registry,
		membership:  membership,
		broadcaster: broadcaster,
		monitor:     monitor,
		interval:    interval,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample := observability.CollabStats{
				Connections:     w.registry.Size(),
				Rooms:           w.membership.Rooms(),
				EventsDelivered: w.broadcaster.Delivered(),
				EventsDropped:   w.broadcaster.Dropped(),
			}

			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
			} else {
				sample.RSSBytes = rss
				sample.CPUPercent = cpu
				sample.PidStatus = status
			}

			w.monitor.Record(sample)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
