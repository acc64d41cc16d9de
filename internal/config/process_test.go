package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileTOMLSingle(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "proc.toml")
	content := "name = \"svc\"\nscript = \"" + script + "\"\ninstances = 1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgs, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 1 || cfgs[0].Name != "svc" {
		t.Fatalf("unexpected configs: %+v", cfgs)
	}
}

func TestLoadFileJSONMultiple(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "procs.json")
	content := `{"processes":[{"name":"a","script":"` + script + `","instances":1},{"name":"b","script":"` + script + `","instances":1}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgs, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(cfgs))
	}
}

func TestLoadFileRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proc.yaml")
	if err := os.WriteFile(path, []byte("name: svc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().LoadFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadSupervisorDefaults(t *testing.T) {
	cfg, err := LoadSupervisor("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SocketPath == "" || cfg.DefaultMaxRestarts == 0 {
		t.Fatalf("expected non-zero defaults, got %+v", cfg)
	}
}
