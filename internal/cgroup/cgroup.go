// Package cgroup manages per-process Linux cgroup v2 directories used to
// enforce a CPU quota (spec section 4.5). It is a Linux-only mechanism;
// on other platforms Setup, Apply, Release and Destroy return nil without
// doing anything, matching the
// original source's non-Linux stub and the spec's "CPU ceilings are
// advisory" note.
package cgroup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	base   = "/sys/fs/cgroup"
	parent = "adasa"
	period = 100_000 // microseconds
)

// Manager owns the cgroup directory for one managed process.
type Manager struct {
	name string
	path string
}

// New returns a manager for the process named name. Setup is lazy: no
// directory is created until Apply is called.
func New(name string) *Manager {
	return &Manager{name: name, path: filepath.Join(base, parent, name)}
}

// Available reports whether cgroups v2 is mounted on this host.
func Available() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := os.Stat(filepath.Join(base, "cgroup.controllers"))
	return err == nil
}

// Setup creates the shared adasa parent cgroup (enabling the cpu
// controller for its children) and this process's own cgroup directory.
// It is idempotent.
func (m *Manager) Setup() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if !Available() {
		return fmt.Errorf("cgroup: cgroups v2 not available on this host")
	}
	parentDir := filepath.Join(base, parent)
	if _, err := os.Stat(parentDir); os.IsNotExist(err) {
		if err := os.Mkdir(parentDir, 0o755); err != nil {
			return fmt.Errorf("cgroup: create parent %s: %w", parentDir, err)
		}
		subtree := filepath.Join(parentDir, "cgroup.subtree_control")
		if err := os.WriteFile(subtree, []byte("+cpu"), 0o644); err != nil {
			return fmt.Errorf("cgroup: enable cpu controller: %w", err)
		}
	}
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		if err := os.Mkdir(m.path, 0o755); err != nil {
			return fmt.Errorf("cgroup: create %s: %w", m.path, err)
		}
	}
	return nil
}

// Apply attaches pid to this cgroup and sets its CPU quota to percent
// (1-100; 100 = one full core), writing "<quota> <period>" to cpu.max per
// the spec's formula quota = percent * period / 100.
func (m *Manager) Apply(pid int, percent int) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if err := m.Setup(); err != nil {
		return err
	}
	procsFile := filepath.Join(m.path, "cgroup.procs")
	if err := os.WriteFile(procsFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("cgroup: add pid %d: %w", pid, err)
	}
	quota := percent * period / 100
	cpuMax := fmt.Sprintf("%d %d", quota, period)
	if err := os.WriteFile(filepath.Join(m.path, "cpu.max"), []byte(cpuMax), 0o644); err != nil {
		return fmt.Errorf("cgroup: set cpu.max: %w", err)
	}
	return nil
}

// Release moves pid back to the root cgroup. Failure is non-fatal: the
// process may already have exited.
func (m *Manager) Release(pid int) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	rootProcs := filepath.Join(base, "cgroup.procs")
	return os.WriteFile(rootProcs, []byte(strconv.Itoa(pid)), 0o644)
}

// Destroy removes this process's cgroup directory. Non-fatal if it is not
// empty yet (the kernel refuses rmdir until the last pid leaves).
func (m *Manager) Destroy() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(m.path)
}

// CurrentMemoryUsage reads memory.current, useful for diagnostics.
func (m *Manager) CurrentMemoryUsage() (int64, error) {
	data, err := os.ReadFile(filepath.Join(m.path, "memory.current"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
}
