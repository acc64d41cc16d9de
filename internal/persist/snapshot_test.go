package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

func TestWriteThenLoadRoundTrip(t *testing.T) {
	reg := registry.New()
	script := filepath.Join(t.TempDir(), "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := process.Config{Name: "svc", Script: script, Instances: 1, AutoRestart: true, MaxRestarts: 5}
	if _, err := reg.Insert(cfg.WithDefaults()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := Write(path, reg); err != nil {
		t.Fatal(err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil || len(snap.Processes) != 1 {
		t.Fatalf("expected one persisted process, got %+v", snap)
	}
	if snap.Processes[0].Name != "svc" {
		t.Fatalf("unexpected name %q", snap.Processes[0].Name)
	}
	if snap.Version != SchemaVersion {
		t.Fatalf("unexpected version %q", snap.Version)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	snap, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot for missing file")
	}
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"version":"0.9.0","processes":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.json")
	content := `{"version":"1.0.0","processes":[{"id":1,"name":"a"},{"id":1,"name":"b"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestRestoreRespawnsUnderOriginalID(t *testing.T) {
	reg := registry.New()
	script := filepath.Join(t.TempDir(), "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	snap := &Snapshot{Version: SchemaVersion, Processes: []PersistedEntry{
		{ID: 7, Name: "restored", Script: script, Instances: 1},
	}}

	var spawnedID registry.ID
	restored, err := Restore(snap, reg, func(id registry.ID, cfg process.Config) error {
		spawnedID = id
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored, got %d", restored)
	}
	if spawnedID != 7 {
		t.Fatalf("expected spawn called with id 7, got %d", spawnedID)
	}
	entry, err := reg.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "restored" {
		t.Fatalf("unexpected entry name %q", entry.Name)
	}
}
