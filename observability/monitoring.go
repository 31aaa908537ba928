// Package observability samples process health for the stats endpoint
// and the debug inspector.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthSnapshot aggregates the gateway's own vitals.
type HealthSnapshot struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	ActiveSessions int     `json:"active_sessions"`
	CPUPercent     float64 `json:"cpu_percent"`
	RAMPercent     float32 `json:"ram_percent"`
	AllocMemMb     uint64  `json:"alloc_mem_mb"`
	NumGoroutine   int     `json:"num_goroutine"`
	NumGC          uint32  `json:"num_gc"`
}

// Monitor samples the gateway process on a fixed interval and serves
// the latest snapshot to the HTTP layer.
type Monitor struct {
	log      *slog.Logger
	interval time.Duration
	// sessions reports the current live session count, wired to the
	// registry at startup.
	sessions func() int

	mu        sync.RWMutex
	latest    HealthSnapshot
	startedAt time.Time
}

func NewMonitor(log *slog.Logger, interval time.Duration, sessions func() int) *Monitor {
	return &Monitor{
		log:       log,
		interval:  interval,
		sessions:  sessions,
		startedAt: time.Now(),
	}
}

// Snapshot returns the most recent sample.
func (m *Monitor) Snapshot() HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Run samples until the context is canceled. It runs under the worker
// supervisor.
func (m *Monitor) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.sample(proc)

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			m.sample(proc)
		}
	}
}

func (m *Monitor) sample(proc *process.Process) {
	snapshot := HealthSnapshot{
		UptimeSeconds:  time.Since(m.startedAt).Seconds(),
		ActiveSessions: m.sessions(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if cpu, err := proc.CPUPercent(); err != nil {
		m.log.Debug("Error while finding process cpu usage", "err", err)
	} else {
		snapshot.CPUPercent = cpu
	}
	if ram, err := proc.MemoryPercent(); err != nil {
		m.log.Debug("Error while finding process ram usage", "err", err)
	} else {
		snapshot.RAMPercent = ram
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snapshot.AllocMemMb = mem.Alloc / 1024 / 1024
	snapshot.NumGC = mem.NumGC

	m.mu.Lock()
	m.latest = snapshot
	m.mu.Unlock()
}
