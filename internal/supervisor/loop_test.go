package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adasa/adasa/internal/lifecycle"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

func quickExitScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "quick.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectCrashesMarksErrored(t *testing.T) {
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	cfg := process.Config{Name: "flash", Script: quickExitScript(t), Instances: 1, AutoRestart: false}

	id, err := engine.Spawn(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Give the child time to exit on its own.
	deadline := time.After(2 * time.Second)
	for {
		entry, err := reg.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		select {
		case <-entry.Handle.Done():
		case <-deadline:
			t.Fatal("script never exited")
		default:
			time.Sleep(10 * time.Millisecond)
			continue
		}
		break
	}

	loop := NewLoop(reg, engine, DefaultInterval, nil)
	crashed := loop.detectCrashes()
	if len(crashed) != 1 || crashed[0] != id {
		t.Fatalf("expected entry %d detected as crashed, got %v", id, crashed)
	}

	entry, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != process.Errored {
		t.Fatalf("expected Errored, got %s", entry.State)
	}
}

func TestAutoRestartDeniedByPolicyStaysErrored(t *testing.T) {
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	cfg := process.Config{
		Name: "gated", Script: quickExitScript(t), Instances: 1,
		AutoRestart: true, MaxRestarts: 1, RestartDelaySecs: 0,
	}
	id, err := engine.Spawn(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Exhaust the policy by recording restarts directly on the tracker.
	entry, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	entry.Tracker.RecordRestart()

	_ = reg.Mutate(id, func(e *registry.Entry) error {
		e.State = process.Errored
		return nil
	})

	loop := NewLoop(reg, engine, DefaultInterval, nil)
	loop.tryAutoRestart(id)

	entry, err = reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != process.Errored {
		t.Fatalf("expected entry to remain Errored when policy denies restart, got %s", entry.State)
	}
}

func TestMonitorRunStopsOnContextCancel(t *testing.T) {
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	mon := NewMonitor(reg, engine, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after context cancel")
	}
}
