// Package observability aggregates live collaboration metrics for the
// debug endpoint and the telemetry worker.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// CollabStats is the snapshot served on /debug/stats.
type CollabStats struct {
	// Collaboration layer.
	Connections       int    `json:"connections"`
	Rooms             int    `json:"rooms"`
	EventsDelivered   uint64 `json:"events_delivered"`
	EventsDropped     uint64 `json:"events_dropped"`
	NotificationsSent uint64 `json:"notifications_sent"`

	// Process.
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"ram_bytes"`
	PidStatus  string  `json:"pid_status"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Monitor keeps the latest snapshot behind a read/write lock. Counters
// that hot paths touch are atomic so producers never contend with the
// debug endpoint.
type Monitor struct {
	log *slog.Logger

	mu     sync.RWMutex
	latest CollabStats

	notificationsSent atomic.Uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

func (m *Monitor) IncrNotificationsSent() {
	m.notificationsSent.Add(1)
}

// Record merges a telemetry sample with the Go runtime metrics and
// publishes a fresh snapshot.
func (m *Monitor) Record(sample CollabStats) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	sample.AllocMemMb = ms.Alloc / 1024 / 1024
	sample.NumGC = ms.NumGC
	sample.NotificationsSent = m.notificationsSent.Load()
	sample.UpdatedAt = time.Now()

	m.mu.Lock()
	m.latest = sample
	m.mu.Unlock()

	m.log.Debug("Stats updated",
		"connections", sample.Connections,
		"rooms", sample.Rooms,
		"delivered", sample.EventsDelivered,
		"dropped", sample.EventsDropped,
		"mem_mb", sample.AllocMemMb,
	)
}

func (m *Monitor) GetLatest() CollabStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
