// Package lifecycle implements the Lifecycle Engine of spec section 4.2:
// Spawn, Stop, Restart, RollingRestart and StopAll, driving the ProcessState
// state machine under the Registry's single exclusive lock.
package lifecycle

import (
	"log/slog"
	"time"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/cgroup"
	"github.com/adasa/adasa/internal/history"
	"github.com/adasa/adasa/internal/logs"
	"github.com/adasa/adasa/internal/monitor"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

// Engine drives lifecycle transitions for entries in reg.
type Engine struct {
	reg    *registry.Registry
	logDir string
	log    *slog.Logger
	hist   *history.Sink // optional; nil disables the audit trail entirely
}

func New(reg *registry.Registry, logDir string, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{reg: reg, logDir: logDir, log: log}
}

// WithHistory attaches an optional event sink. Record failures are logged,
// never propagated: the audit trail must never affect supervision (see
// internal/history's package doc).
func (e *Engine) WithHistory(h *history.Sink) *Engine {
	e.hist = h
	return e
}

func (e *Engine) record(processID registry.ID, name string, event history.Event, detail string) {
	if e.hist == nil {
		return
	}
	if err := e.hist.Record(uint64(processID), name, event, detail); err != nil {
		e.log.Warn("history record failed", "id", processID, "event", event, "error", err)
	}
}

// Spawn validates cfg, inserts a new Starting entry, starts the OS child,
// wires its stdout/stderr to the log writer, attaches a cgroup when MaxCPU
// is set, and transitions to Running once the pid is confirmed alive.
func (e *Engine) Spawn(cfg process.Config) (registry.ID, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	id, err := e.reg.Insert(cfg)
	if err != nil {
		return 0, err
	}

	if err := e.startChild(id, cfg); err != nil {
		e.reg.Remove(id)
		return 0, err
	}
	e.record(id, cfg.Name, history.EventSpawn, cfg.Script)
	return id, nil
}

// SpawnReplicas expands cfg.Instances into that many replicas, each with
// its own ProcessId and synthesised "{name}-{i}" name (spec section 3); a
// single instance keeps the plain name (see process.Config.ReplicaName).
// Partial failure is not rolled back: ids already spawned remain registered
// (spec section 7's no-rollback propagation rule), matching the Start
// command's "return the first id and a count" contract (spec section 4.6).
func (e *Engine) SpawnReplicas(cfg process.Config) (first registry.ID, count int, err error) {
	cfg = cfg.WithDefaults()
	n := cfg.Instances
	if n < 1 {
		n = 1
	}
	for i := 1; i <= n; i++ {
		replica := cfg
		replica.Name = cfg.ReplicaName(i)
		id, spawnErr := e.Spawn(replica)
		if spawnErr != nil {
			if count == 0 {
				return 0, 0, spawnErr
			}
			e.log.Warn("partial replica spawn failure", "base_name", cfg.Name, "spawned", count, "error", spawnErr)
			return first, count, nil
		}
		if count == 0 {
			first = id
		}
		count++
	}
	return first, count, nil
}

// Attach starts the OS child for an id that is already registered (used by
// internal/persist's restore-on-startup path, where the ProcessId must be
// preserved across a supervisor restart rather than freshly allocated).
func (e *Engine) Attach(id registry.ID, cfg process.Config) error {
	return e.startChild(id, cfg)
}

func (e *Engine) startChild(id registry.ID, cfg process.Config) error {
	h, err := process.Spawn(cfg)
	if err != nil {
		return err
	}

	if e.logDir != "" {
		outW, werr := logs.NewWriter(e.logDir, cfg.Name, uint64(id), logs.Stdout, 0)
		if werr == nil {
			go logs.Pump(h.Stdout, outW)
		}
		errW, werr := logs.NewWriter(e.logDir, cfg.Name, uint64(id), logs.Stderr, 0)
		if werr == nil {
			go logs.Pump(h.Stderr, errW)
		}
	}

	var cg *cgroup.Manager
	if cfg.MaxCPU != nil {
		cg = cgroup.New(cfg.Name)
		if err := cg.Apply(h.PID(), *cfg.MaxCPU); err != nil {
			e.log.Warn("cgroup cpu quota not applied", "name", cfg.Name, "error", err)
		}
	}

	return e.reg.Mutate(id, func(entry *registry.Entry) error {
		entry.Handle = h
		entry.Stats = process.NewStats(h.PID())
		entry.Cgroup = cg
		if monitor.IsAlive(h.PID()) {
			entry.State = process.Running
		}
		return nil
	})
}

// Stop transitions id to Stopping, signals the child (force => SIGKILL
// immediately, otherwise config.StopSignal with an escalation to SIGKILL
// after StopTimeoutSecs), reaps it, and marks Stopped. Idempotent: if the
// child already exited, it reaps and marks Stopped without error.
func (e *Engine) Stop(id registry.ID, force bool) error {
	entry, err := e.reg.Get(id)
	if err != nil {
		return err
	}
	if entry.Handle == nil {
		return e.reg.Mutate(id, func(entry *registry.Entry) error {
			entry.State = process.Stopped
			return nil
		})
	}

	_ = e.reg.Mutate(id, func(entry *registry.Entry) error {
		entry.State = process.Stopping
		return nil
	})

	h := entry.Handle
	select {
	case <-h.Done():
		// Already exited concurrently with our stop request: idempotent.
	default:
		sig := process.SignalFor(process.SigKILL)
		if !force {
			sig = process.SignalFor(entry.Config.StopSignal)
		}
		if err := h.Signal(sig); err != nil && !force {
			return adasaerr.New(adasaerr.StopError, "signal %d->%d: %v", id, sig, err)
		}
		if force {
			<-h.Done()
		} else {
			timeout := time.Duration(entry.Config.StopTimeoutSecs) * time.Second
			if !h.WaitTimeout(timeout) {
				_ = h.Signal(process.SignalFor(process.SigKILL))
				<-h.Done()
			}
		}
	}

	if entry.Cgroup != nil {
		_ = entry.Cgroup.Release(h.PID())
		_ = entry.Cgroup.Destroy()
	}

	err = e.reg.Mutate(id, func(entry *registry.Entry) error {
		entry.State = process.Stopped
		return nil
	})
	if err == nil {
		e.record(id, entry.Name, history.EventStop, "")
	}
	return err
}

// Restart stops id gracefully and respawns a fresh child under the same
// ProcessId, preserving identity (spec section 4.2's Restart law): restart
// count increments, pid/started_at move forward, name/id are unchanged.
func (e *Engine) Restart(id registry.ID) error {
	entry, err := e.reg.Get(id)
	if err != nil {
		return err
	}
	cfg := entry.Config

	if err := e.Stop(id, false); err != nil {
		return err
	}

	h, err := process.Spawn(cfg)
	if err != nil {
		return adasaerr.New(adasaerr.SpawnError, "restart %d: %v", id, err)
	}

	if e.logDir != "" {
		outW, werr := logs.NewWriter(e.logDir, cfg.Name, uint64(id), logs.Stdout, 0)
		if werr == nil {
			go logs.Pump(h.Stdout, outW)
		}
		errW, werr := logs.NewWriter(e.logDir, cfg.Name, uint64(id), logs.Stderr, 0)
		if werr == nil {
			go logs.Pump(h.Stderr, errW)
		}
	}

	var cg *cgroup.Manager
	if cfg.MaxCPU != nil {
		cg = cgroup.New(cfg.Name)
		if err := cg.Apply(h.PID(), *cfg.MaxCPU); err != nil {
			e.log.Warn("cgroup cpu quota not applied on restart", "name", cfg.Name, "error", err)
		}
	}

	err = e.reg.Mutate(id, func(entry *registry.Entry) error {
		entry.Handle = h
		entry.Cgroup = cg
		entry.Stats.RecordRestart(h.PID())
		entry.Tracker.RecordRestart()
		if monitor.IsAlive(h.PID()) {
			entry.State = process.Running
		} else {
			entry.State = process.Errored
		}
		return nil
	})
	if err == nil {
		e.record(id, cfg.Name, history.EventRestart, "")
	}
	return err
}

// Reconfigure replaces id's stored Config and restarts it under that new
// config, preserving ProcessId (used by ReloadConfig's apply_diff=true path,
// spec section 4.6).
func (e *Engine) Reconfigure(id registry.ID, cfg process.Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.reg.Mutate(id, func(entry *registry.Entry) error {
		entry.Config = cfg
		return nil
	}); err != nil {
		return err
	}
	return e.Restart(id)
}

// RollingRestart restarts every replica of name sequentially, sleeping
// healthCheckDelay and verifying liveness between steps so that at no
// observable instant are more than one replica simultaneously out of
// Running (spec section 8, Rolling availability law). It aborts on the
// first failed health check. A single-replica name collapses to an
// ordinary Restart.
func (e *Engine) RollingRestart(name string, healthCheckDelay time.Duration) (int, error) {
	replicas := e.reg.FindReplicas(name)
	if len(replicas) == 0 {
		return 0, adasaerr.New(adasaerr.NotFound, "no replicas found for %q", name)
	}
	if len(replicas) == 1 {
		if err := e.Restart(replicas[0].ID); err != nil {
			return 0, err
		}
		return 1, nil
	}

	restarted := 0
	for i, rep := range replicas {
		if err := e.Restart(rep.ID); err != nil {
			return restarted, adasaerr.New(adasaerr.RestartError, "rolling restart of %q failed at replica %d: %v", name, rep.ID, err)
		}
		restarted++

		if i != len(replicas)-1 {
			time.Sleep(healthCheckDelay)
			entry, err := e.reg.Get(rep.ID)
			if err != nil {
				return restarted, adasaerr.New(adasaerr.RestartError, "rolling restart of %q: replica %d vanished mid-restart", name, rep.ID)
			}
			if entry.Handle == nil || !monitor.IsAlive(entry.Handle.PID()) {
				return restarted, adasaerr.New(adasaerr.RestartError, "rolling restart of %q: replica %d failed health check", name, rep.ID)
			}
		}
	}
	return restarted, nil
}

// StopAll attempts a graceful stop of every registered entry, logging but
// not surfacing individual failures (spec section 4.2).
func (e *Engine) StopAll() {
	for _, entry := range e.reg.List() {
		if err := e.Stop(entry.ID, false); err != nil {
			e.log.Warn("stop failed during StopAll", "id", entry.ID, "name", entry.Name, "error", err)
		}
	}
}
