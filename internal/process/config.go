// Package process holds the data model of a managed process: its immutable
// configuration, its state machine, and its runtime stats (spec section 3).
package process

import (
	"os"
	"strconv"
	"strings"

	"github.com/adasa/adasa/internal/adasaerr"
)

// LimitAction is what the Limit Enforcer does when a ceiling is exceeded.
type LimitAction string

const (
	LimitLog     LimitAction = "log"
	LimitRestart LimitAction = "restart"
	LimitStop    LimitAction = "stop"
)

// StopSignal is a signal the Lifecycle Engine may deliver to request a
// graceful stop. KILL is accepted but defeats the graceful protocol.
type StopSignal string

const (
	SigTERM StopSignal = "TERM"
	SigINT  StopSignal = "INT"
	SigQUIT StopSignal = "QUIT"
	SigHUP  StopSignal = "HUP"
	SigUSR1 StopSignal = "USR1"
	SigUSR2 StopSignal = "USR2"
	SigKILL StopSignal = "KILL"
)

// Config is the immutable-per-process configuration (spec section 3,
// ProcessConfig). It is copied verbatim on restart.
type Config struct {
	Name    string
	Script  string
	Args    []string
	Cwd     string
	Env     map[string]string
	Instances int

	AutoRestart      bool
	MaxRestarts      int
	RestartDelaySecs int

	MaxMemory   *uint64
	MaxCPU      *int
	LimitAction LimitAction

	StopSignal      StopSignal
	StopTimeoutSecs int
}

// WithDefaults returns a copy of c with zero-value fields replaced by spec
// defaults (instances=1, max_restarts>=1 default 10, stop_signal default
// TERM, limit_action default Log), mirroring the defaulting style of the
// teacher's lifecycle config (GetDefaults).
func (c Config) WithDefaults() Config {
	out := c
	if out.Instances <= 0 {
		out.Instances = 1
	}
	if out.MaxRestarts <= 0 {
		out.MaxRestarts = 10
	}
	if out.LimitAction == "" {
		out.LimitAction = LimitLog
	}
	if out.StopSignal == "" {
		out.StopSignal = SigTERM
	}
	if out.Env == nil {
		out.Env = map[string]string{}
	}
	return out
}

// Validate checks the invariants spec section 3 places on a ProcessConfig
// before it may be inserted into the Registry.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return adasaerr.New(adasaerr.ConfigMissingField, "name must not be empty")
	}
	if strings.TrimSpace(c.Script) == "" {
		return adasaerr.New(adasaerr.ConfigMissingField, "script must not be empty")
	}
	if _, err := os.Stat(c.Script); err != nil {
		return adasaerr.New(adasaerr.SpawnError, "script %q does not exist: %v", c.Script, err)
	}
	if c.Cwd != "" {
		fi, err := os.Stat(c.Cwd)
		if err != nil || !fi.IsDir() {
			return adasaerr.New(adasaerr.ConfigInvalid, "cwd %q is not an existing directory", c.Cwd)
		}
	}
	if c.Instances < 1 {
		return adasaerr.New(adasaerr.ConfigInvalid, "instances must be >= 1, got %d", c.Instances)
	}
	if c.MaxRestarts < 1 {
		return adasaerr.New(adasaerr.ConfigInvalid, "max_restarts must be >= 1, got %d", c.MaxRestarts)
	}
	if c.RestartDelaySecs < 0 {
		return adasaerr.New(adasaerr.ConfigInvalid, "restart_delay_secs must be >= 0")
	}
	if c.MaxCPU != nil && (*c.MaxCPU < 1 || *c.MaxCPU > 100) {
		return adasaerr.New(adasaerr.ConfigInvalid, "max_cpu must be in 1..100, got %d", *c.MaxCPU)
	}
	switch c.LimitAction {
	case "", LimitLog, LimitRestart, LimitStop:
	default:
		return adasaerr.New(adasaerr.ConfigInvalid, "unknown limit_action %q", c.LimitAction)
	}
	switch c.StopSignal {
	case "", SigTERM, SigINT, SigQUIT, SigHUP, SigUSR1, SigUSR2, SigKILL:
	default:
		return adasaerr.New(adasaerr.ConfigInvalid, "unknown stop_signal %q", c.StopSignal)
	}
	if c.StopTimeoutSecs < 0 {
		return adasaerr.New(adasaerr.ConfigInvalid, "stop_timeout_secs must be >= 0")
	}
	return nil
}

// ReplicaName synthesises the name of the i-th replica (1-based) of this
// config, per spec section 3: "{name}-{i}". A config with Instances <= 1
// keeps its plain name.
func (c Config) ReplicaName(i int) string {
	if c.Instances <= 1 {
		return c.Name
	}
	return c.Name + "-" + strconv.Itoa(i)
}
