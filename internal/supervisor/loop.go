// Package supervisor implements the background Supervisor Loop and
// Monitor/Limit Enforcer tick of spec sections 4.4 and 4.5: periodic crash
// detection with policy-gated auto-restart, and CPU/memory ceiling
// enforcement.
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

// DefaultInterval is the crash-detection cadence fixed by spec section 4.4.
const DefaultInterval = 500 * time.Millisecond

// Loop periodically detects crashed entries and attempts policy-gated
// auto-restart, one goroutine for the lifetime of the daemon.
type Loop struct {
	reg      *registry.Registry
	engine   *lifecycle.Engine
	interval time.Duration
	log      *slog.Logger
	hist     *history.Sink

	restarting map[registry.ID]bool
}

func NewLoop(reg *registry.Registry, engine *lifecycle.Engine, interval time.Duration, log *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{reg: reg, engine: engine, interval: interval, log: log, restarting: make(map[registry.ID]bool)}
}

// WithHistory attaches an optional event sink so crash detections are
// recorded in the audit trail alongside the Lifecycle Engine's own events.
func (l *Loop) WithHistory(h *history.Sink) *Loop {
	l.hist = h
	return l
}

// Run blocks, ticking at l.interval until ctx is cancelled. A tick delayed
// by a slow previous tick is skipped rather than backfilled (spec section
// 4.4's missed-tick policy): time.Ticker already drops ticks it cannot
// deliver promptly, so no extra bookkeeping is needed here.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick runs one detect-crashes-then-restart pass.
func (l *Loop) tick() {
	crashed := l.detectCrashes()
	for _, id := range crashed {
		if l.restarting[id] {
			continue
		}
		l.tryAutoRestart(id)
	}
}

// detectCrashes marks every Running entry whose pid is no longer alive at
// the OS level as Errored and returns their ids. Liveness is the signal-0
// probe alone: the process start time is not compared, so a pid reused by an
// unrelated process counts as alive.
func (l *Loop) detectCrashes() []registry.ID {
	var crashed []registry.ID
	for _, entry := range l.reg.List() {
		if entry.State != process.Running || entry.Handle == nil {
			continue
		}
		pid := entry.Handle.PID()
		if monitor.IsAlive(pid) {
			continue
		}
		id := entry.ID
		_ = l.reg.Mutate(id, func(e *registry.Entry) error {
			if e.State == process.Running {
				e.State = process.Errored
				e.Stats.CPUUsage = 0
			}
			return nil
		})
		if l.hist != nil {
			if err := l.hist.Record(uint64(id), entry.Name, history.EventCrash, ""); err != nil {
				l.log.Warn("history record failed", "id", id, "error", err)
			}
		}
		crashed = append(crashed, id)
	}
	return crashed
}

// tryAutoRestart consults the entry's restart policy; if it denies, the
// entry is left Errored. If allowed, it releases the Registry lock around
// the backoff sleep (spec section 5's suspension-point requirement) and
// re-validates the entry still exists before spawning the replacement.
func (l *Loop) tryAutoRestart(id registry.ID) {
	entry, err := l.reg.Get(id)
	if err != nil {
		return
	}
	if !entry.Config.AutoRestart || !entry.Policy.ShouldRestart(entry.Tracker) {
		l.log.Warn("auto-restart denied by policy", "id", id, "name", entry.Name)
		return
	}

	l.restarting[id] = true
	defer delete(l.restarting, id)

	delay := entry.Policy.CalculateDelay(entry.Tracker)
	time.Sleep(delay)

	// Re-validate: a concurrent Delete may have removed the entry while we
	// slept outside the lock.
	if _, err := l.reg.Get(id); err != nil {
		l.log.Info("auto-restart aborted, entry removed during backoff", "id", id)
		return
	}

	if err := l.engine.Restart(id); err != nil {
		l.log.Error("auto-restart failed", "id", id, "name", entry.Name, "error", err)
		return
	}
	l.log.Info("auto-restarted", "id", id, "name", entry.Name, "delay", delay)
}
