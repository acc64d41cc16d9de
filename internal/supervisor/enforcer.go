package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/adasa/adasa/internal/history"
	"github.com/adasa/adasa/internal/lifecycle"
	"github.com/adasa/adasa/internal/monitor"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

// DefaultMonitorInterval is the CPU/memory sampling cadence fixed by spec
// section 4.4/4.5.
const DefaultMonitorInterval = 2 * time.Second

// Monitor samples CPU/memory for every Running entry and enforces the
// configured ceilings (spec section 4.5), sharing its tick between sampling
// and limit enforcement as the spec permits.
type Monitor struct {
	reg      *registry.Registry
	engine   *lifecycle.Engine
	interval time.Duration
	log      *slog.Logger
	hist     *history.Sink
}

func NewMonitor(reg *registry.Registry, engine *lifecycle.Engine, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{reg: reg, engine: engine, interval: interval, log: log}
}

// WithHistory attaches an optional event sink so limit violations are
// recorded in the audit trail.
func (m *Monitor) WithHistory(h *history.Sink) *Monitor {
	m.hist = h
	return m
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	for _, entry := range m.reg.List() {
		if entry.State != process.Running || entry.Handle == nil {
			continue
		}
		pid := entry.Handle.PID()
		sample, err := monitor.SampleProcess(pid)
		if err != nil {
			// Sampling failure is not itself a crash verdict; the
			// Supervisor loop's next tick makes that call.
			continue
		}

		id := entry.ID
		var memViolated, cpuViolated bool
		_ = m.reg.Mutate(id, func(e *registry.Entry) error {
			e.Stats.CPUUsage = sample.CPUPercent
			e.Stats.MemoryUsage = sample.RSSBytes
			if e.Config.MaxMemory != nil && sample.RSSBytes > *e.Config.MaxMemory {
				e.Stats.RecordMemoryViolation()
				memViolated = true
			}
			if e.Config.MaxCPU != nil && sample.CPUPercent > float64(*e.Config.MaxCPU) {
				e.Stats.RecordCPUViolation()
				cpuViolated = true
			}
			return nil
		})

		if memViolated || cpuViolated {
			if m.hist != nil {
				if err := m.hist.Record(uint64(id), entry.Name, history.EventLimitViolation, ""); err != nil {
					m.log.Warn("history record failed", "id", id, "error", err)
				}
			}
			m.enforce(entry.ID, entry.Name, entry.Config.LimitAction, memViolated, cpuViolated)
		}
	}
}

// enforce applies config.LimitAction once per violated tick. Log merely
// warns; Restart and Stop dispatch into the Lifecycle Engine exactly as the
// entry's own commands would.
func (m *Monitor) enforce(id registry.ID, name string, action process.LimitAction, mem, cpu bool) {
	switch action {
	case process.LimitRestart:
		m.log.Warn("resource ceiling exceeded, restarting", "id", id, "name", name, "memory", mem, "cpu", cpu)
		if err := m.engine.Restart(id); err != nil {
			m.log.Error("limit-triggered restart failed", "id", id, "error", err)
		}
	case process.LimitStop:
		m.log.Warn("resource ceiling exceeded, stopping", "id", id, "name", name, "memory", mem, "cpu", cpu)
		if err := m.engine.Stop(id, false); err != nil {
			m.log.Error("limit-triggered stop failed", "id", id, "error", err)
		}
	default:
		m.log.Warn("resource ceiling exceeded (logged)", "id", id, "name", name, "memory", mem, "cpu", cpu)
	}
}
