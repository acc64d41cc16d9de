// Package config implements the Config collaborator of spec section 6
// (parses TOML/JSON ProcessConfig files, file extension decides) plus the
// supervisor's own top-level configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/process"
	"github.com/pelletier/go-toml/v2"
)

// fileEntry is the on-disk shape of one ProcessConfig, matching
// process.Config field-for-field so the core's own Validate re-runs its
// invariants on the result (spec section 6: "the core trusts these configs
// after the collaborator's validation but re-runs its own invariants").
type fileEntry struct {
	Name             string            `toml:"name" json:"name"`
	Script           string            `toml:"script" json:"script"`
	Args             []string          `toml:"args" json:"args"`
	Cwd              string            `toml:"cwd" json:"cwd"`
	Env              map[string]string `toml:"env" json:"env"`
	Instances        int               `toml:"instances" json:"instances"`
	AutoRestart      bool              `toml:"autorestart" json:"autorestart"`
	MaxRestarts      int               `toml:"max_restarts" json:"max_restarts"`
	RestartDelaySecs int               `toml:"restart_delay_secs" json:"restart_delay_secs"`
	MaxMemory        *uint64           `toml:"max_memory" json:"max_memory"`
	MaxCPU           *int              `toml:"max_cpu" json:"max_cpu"`
	LimitAction      string            `toml:"limit_action" json:"limit_action"`
	StopSignal       string            `toml:"stop_signal" json:"stop_signal"`
	StopTimeoutSecs  int               `toml:"stop_timeout_secs" json:"stop_timeout_secs"`
}

// fileDoc is either a single process entry or a `[[process]]` / `"processes"`
// array of them.
type fileDoc struct {
	Processes []fileEntry `toml:"process" json:"processes"`
}

// Loader implements control.ConfigLoader.
type Loader struct{}

func NewLoader() *Loader { return &Loader{} }

// LoadFile parses path (TOML or JSON, by extension) into a list of
// validated process.Config, per spec section 6.
func (Loader) LoadFile(path string) ([]process.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, adasaerr.New(adasaerr.ConfigInvalid, "read %s: %v", path, err)
	}

	entries, err := decode(path, data)
	if err != nil {
		return nil, err
	}

	cfgs := make([]process.Config, 0, len(entries))
	for _, e := range entries {
		cfg := process.Config{
			Name: e.Name, Script: e.Script, Args: e.Args, Cwd: e.Cwd, Env: e.Env,
			Instances: e.Instances, AutoRestart: e.AutoRestart, MaxRestarts: e.MaxRestarts,
			RestartDelaySecs: e.RestartDelaySecs, MaxMemory: e.MaxMemory, MaxCPU: e.MaxCPU,
			LimitAction: process.LimitAction(e.LimitAction), StopSignal: process.StopSignal(e.StopSignal),
			StopTimeoutSecs: e.StopTimeoutSecs,
		}.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func decode(path string, data []byte) ([]fileEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var doc fileDoc
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, adasaerr.New(adasaerr.ConfigInvalid, "parse toml %s: %v", path, err)
		}
		if len(doc.Processes) > 0 {
			return doc.Processes, nil
		}
		var single fileEntry
		if err := toml.Unmarshal(data, &single); err != nil {
			return nil, adasaerr.New(adasaerr.ConfigInvalid, "parse toml %s: %v", path, err)
		}
		return []fileEntry{single}, nil
	case ".json":
		var doc fileDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, adasaerr.New(adasaerr.ConfigInvalid, "parse json %s: %v", path, err)
		}
		if len(doc.Processes) > 0 {
			return doc.Processes, nil
		}
		var single fileEntry
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, adasaerr.New(adasaerr.ConfigInvalid, "parse json %s: %v", path, err)
		}
		return []fileEntry{single}, nil
	default:
		return nil, adasaerr.New(adasaerr.ConfigInvalid, "unsupported config extension %q (want .toml or .json)", filepath.Ext(path))
	}
}
