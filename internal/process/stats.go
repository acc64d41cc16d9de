package process

import "time"

// Stats is the per-entry runtime statistics (spec section 3, ProcessStats).
type Stats struct {
	PID              int
	StartedAt        time.Time
	Restarts         int
	LastRestart      *time.Time
	CPUUsage         float64
	MemoryUsage      uint64
	MemoryViolations int
	CPUViolations    int
}

// NewStats initializes stats for a freshly spawned pid.
func NewStats(pid int) Stats {
	return Stats{PID: pid, StartedAt: time.Now()}
}

// Uptime is now - started_at.
func (s Stats) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// RecordRestart mirrors the original source's ProcessStats::record_restart:
// bumps the restart counter, stamps last_restart and a fresh started_at,
// replaces the pid, and resets the cached usage samples to zero.
func (s *Stats) RecordRestart(newPID int) {
	now := time.Now()
	s.Restarts++
	s.LastRestart = &now
	s.StartedAt = now
	s.PID = newPID
	s.CPUUsage = 0
	s.MemoryUsage = 0
}

func (s *Stats) RecordMemoryViolation() { s.MemoryViolations++ }
func (s *Stats) RecordCPUViolation()    { s.CPUViolations++ }
