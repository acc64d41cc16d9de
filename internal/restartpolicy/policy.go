// Package restartpolicy implements the restart decision and backoff math of
// spec section 4.3, ported from the original implementation's restart
// tracker/policy module.
package restartpolicy

import "time"

// BackoffStrategy computes the delay before the next restart attempt.
type BackoffStrategy interface {
	Delay(initialDelay time.Duration, restartCount int) time.Duration
}

// Fixed always waits the same delay.
type Fixed struct{}

func (Fixed) Delay(initialDelay time.Duration, _ int) time.Duration { return initialDelay }

// Exponential doubles the delay per restart, capped at MaxDelay, saturating
// on overflow rather than wrapping.
type Exponential struct {
	MaxDelay time.Duration
}

func (e Exponential) Delay(initialDelay time.Duration, restartCount int) time.Duration {
	if restartCount < 0 {
		restartCount = 0
	}
	// 2^restartCount as a multiplier; saturate rather than overflow once the
	// shift would exceed 62 bits or the product would exceed MaxDelay.
	const maxShift = 62
	shift := restartCount
	if shift > maxShift {
		shift = maxShift
	}
	multiplier := int64(1) << uint(shift)
	delay := initialDelay
	if multiplier > 1 {
		if initialDelay > 0 && multiplier > int64(e.MaxDelay/initialDelay)+1 {
			return e.MaxDelay
		}
		delay = initialDelay * time.Duration(multiplier)
	}
	if delay > e.MaxDelay || delay < 0 {
		return e.MaxDelay
	}
	return delay
}

// Policy is the per-entry restart policy (spec section 4.3).
type Policy struct {
	Enabled         bool
	MaxRestarts     int
	TimeWindow      time.Duration
	InitialDelay    time.Duration
	Backoff         BackoffStrategy
}

// Default mirrors the original RestartPolicy::new() defaults: enabled,
// max_restarts=10, window=60s, initial_delay=1s, Exponential{max=60s}.
func Default() Policy {
	return Policy{
		Enabled:      true,
		MaxRestarts:  10,
		TimeWindow:   60 * time.Second,
		InitialDelay: time.Second,
		Backoff:      Exponential{MaxDelay: 60 * time.Second},
	}
}

// FromConfig mirrors RestartPolicy::from_config.
func FromConfig(enabled bool, maxRestarts int, restartDelay time.Duration) Policy {
	return Policy{
		Enabled:      enabled,
		MaxRestarts:  maxRestarts,
		TimeWindow:   60 * time.Second,
		InitialDelay: restartDelay,
		Backoff:      Exponential{MaxDelay: 60 * time.Second},
	}
}

// ShouldRestart implements should_restart: enabled AND the recent-restart
// count within TimeWindow is still under MaxRestarts. This must be checked
// before every auto-restart attempt (Invariant 4).
func (p Policy) ShouldRestart(t *Tracker) bool {
	if !p.Enabled {
		return false
	}
	return t.CountRecent(p.TimeWindow) < p.MaxRestarts
}

// CalculateDelay implements calculate_delay: the backoff strategy applied to
// the tracker's current restart count.
func (p Policy) CalculateDelay(t *Tracker) time.Duration {
	strategy := p.Backoff
	if strategy == nil {
		strategy = Fixed{}
	}
	return strategy.Delay(p.InitialDelay, t.RestartCount())
}

// Tracker is the per-entry restart history (spec section 3/4.3).
type Tracker struct {
	restartTimes []time.Time
}

func NewTracker() *Tracker { return &Tracker{} }

// RecordRestart appends now() to the history.
func (t *Tracker) RecordRestart() {
	t.restartTimes = append(t.restartTimes, time.Now())
}

// RestartCount is the total number of restarts ever recorded.
func (t *Tracker) RestartCount() int { return len(t.restartTimes) }

// CountRecent counts restarts within the last window.
func (t *Tracker) CountRecent(window time.Duration) int {
	now := time.Now()
	n := 0
	for _, ts := range t.restartTimes {
		if now.Sub(ts) < window {
			n++
		}
	}
	return n
}

// LastRestartTime returns the most recent restart timestamp, if any.
func (t *Tracker) LastRestartTime() (time.Time, bool) {
	if len(t.restartTimes) == 0 {
		return time.Time{}, false
	}
	return t.restartTimes[len(t.restartTimes)-1], true
}

// Clear discards all restart history.
func (t *Tracker) Clear() { t.restartTimes = nil }

// PruneOldRestarts discards entries older than window. Optional
// housekeeping: CountRecent is correct without it.
func (t *Tracker) PruneOldRestarts(window time.Duration) {
	now := time.Now()
	kept := t.restartTimes[:0]
	for _, ts := range t.restartTimes {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	t.restartTimes = kept
}
