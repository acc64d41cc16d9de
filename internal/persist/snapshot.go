// Package persist implements the snapshot file of spec section 4.7: a
// write-temp-then-rename JSON dump of the Registry written on clean
// shutdown and replayed on startup.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

// SchemaVersion is the only version this package knows how to load (spec
// section 6: version mismatch is a fatal load error).
const SchemaVersion = "1.0.0"

// Snapshot is the on-disk schema of spec section 6.
type Snapshot struct {
	Version     string            `json:"version"`
	LastUpdated time.Time         `json:"last_updated"`
	Processes   []PersistedEntry  `json:"processes"`
}

// PersistedEntry is one managed process as captured for restore. Pid and
// live stats are deliberately not carried forward (spec section 4.7: "fresh
// pid" on restore).
type PersistedEntry struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Script      string   `json:"script"`
	Args        []string `json:"args,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	AutoRestart bool     `json:"autorestart"`
	MaxRestarts int      `json:"max_restarts"`
	Instances   int      `json:"instances"`
}

// Write builds a Snapshot from every entry in reg and atomically replaces
// the file at path (write to a sibling temp file, then rename).
func Write(path string, reg *registry.Registry) error {
	snap := Snapshot{Version: SchemaVersion, LastUpdated: time.Now()}
	for _, e := range reg.List() {
		cfg := e.Config
		snap.Processes = append(snap.Processes, PersistedEntry{
			ID: uint64(e.ID), Name: e.Name, Script: cfg.Script, Args: cfg.Args,
			Cwd: cfg.Cwd, Env: cfg.Env, AutoRestart: cfg.AutoRestart,
			MaxRestarts: cfg.MaxRestarts, Instances: cfg.Instances,
		})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return adasaerr.New(adasaerr.StateError, "marshal snapshot: %v", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".adasa-snapshot-*")
	if err != nil {
		return adasaerr.New(adasaerr.StateError, "create temp snapshot: %v", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return adasaerr.New(adasaerr.StateError, "write temp snapshot: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return adasaerr.New(adasaerr.StateError, "close temp snapshot: %v", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return adasaerr.New(adasaerr.StateError, "rename temp snapshot: %v", err)
	}
	return nil
}

// Load reads and validates the snapshot at path. A missing file is not an
// error: it returns a nil Snapshot (fresh start). Version mismatch or a
// duplicate id/name within the file is a fatal StateError (spec section 6).
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, adasaerr.New(adasaerr.StateError, "read snapshot: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, adasaerr.New(adasaerr.StateError, "parse snapshot: %v", err)
	}
	if snap.Version != SchemaVersion {
		return nil, adasaerr.New(adasaerr.StateError, "snapshot version %q does not match expected %q", snap.Version, SchemaVersion)
	}

	seenID := make(map[uint64]bool, len(snap.Processes))
	seenName := make(map[string]bool, len(snap.Processes))
	for _, p := range snap.Processes {
		if seenID[p.ID] {
			return nil, adasaerr.New(adasaerr.StateError, "duplicate id %d in snapshot", p.ID)
		}
		if seenName[p.Name] {
			return nil, adasaerr.New(adasaerr.StateError, "duplicate name %q in snapshot", p.Name)
		}
		seenID[p.ID] = true
		seenName[p.Name] = true
	}
	return &snap, nil
}

// Restore respawns every persisted entry under its original ProcessId with
// a fresh pid, via InsertWithID, returning the number restored and the
// first error encountered (subsequent entries are still attempted, matching
// the no-rollback propagation rule of spec section 7).
func Restore(snap *Snapshot, reg *registry.Registry, spawn func(id registry.ID, cfg process.Config) error) (int, error) {
	if snap == nil {
		return 0, nil
	}
	var firstErr error
	restored := 0
	for _, p := range snap.Processes {
		cfg := process.Config{
			Name: p.Name, Script: p.Script, Args: p.Args, Cwd: p.Cwd, Env: p.Env,
			AutoRestart: p.AutoRestart, MaxRestarts: p.MaxRestarts, Instances: p.Instances,
		}.WithDefaults()

		if err := reg.InsertWithID(registry.ID(p.ID), cfg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := spawn(registry.ID(p.ID), cfg); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("restore %q (id %d): %w", p.Name, p.ID, err)
			}
			continue
		}
		restored++
	}
	return restored, firstErr
}
