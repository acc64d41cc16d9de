package process

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	valid := Config{Name: "s1", Script: script, Instances: 1, MaxRestarts: 10}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missingName := valid
	missingName.Name = ""
	if err := missingName.Validate(); err == nil {
		t.Fatal("expected error for empty name")
	}

	badScript := valid
	badScript.Script = filepath.Join(dir, "does-not-exist")
	if err := badScript.Validate(); err == nil {
		t.Fatal("expected error for missing script")
	}

	badInstances := valid
	badInstances.Instances = 0
	if err := badInstances.Validate(); err == nil {
		t.Fatal("expected error for instances < 1")
	}

	badCPU := valid
	cpu := 150
	badCPU.MaxCPU = &cpu
	if err := badCPU.Validate(); err == nil {
		t.Fatal("expected error for out-of-range max_cpu")
	}
}

func TestReplicaName(t *testing.T) {
	c := Config{Name: "web", Instances: 3}
	if got := c.ReplicaName(1); got != "web-1" {
		t.Fatalf("got %q", got)
	}
	single := Config{Name: "web", Instances: 1}
	if got := single.ReplicaName(1); got != "web" {
		t.Fatalf("got %q", got)
	}
}
