package restartpolicy

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	if !p.Enabled || p.MaxRestarts != 10 || p.TimeWindow != 60*time.Second || p.InitialDelay != time.Second {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(true, 5, 2*time.Second)
	if !p.Enabled || p.MaxRestarts != 5 || p.InitialDelay != 2*time.Second {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestShouldRestartDisabled(t *testing.T) {
	p := FromConfig(false, 10, time.Second)
	tr := NewTracker()
	if p.ShouldRestart(tr) {
		t.Fatal("disabled policy must never allow restart")
	}
}

func TestShouldRestartGate(t *testing.T) {
	p := FromConfig(true, 3, time.Second)
	tr := NewTracker()

	if !p.ShouldRestart(tr) {
		t.Fatal("expected restart allowed under limit")
	}
	tr.RecordRestart()
	if !p.ShouldRestart(tr) {
		t.Fatal("expected restart allowed at 1/3")
	}
	tr.RecordRestart()
	if !p.ShouldRestart(tr) {
		t.Fatal("expected restart allowed at 2/3")
	}
	tr.RecordRestart()
	if p.ShouldRestart(tr) {
		t.Fatal("expected restart denied at 3/3")
	}
}

func TestBackoffFixed(t *testing.T) {
	f := Fixed{}
	for _, n := range []int{0, 1, 10} {
		if got := f.Delay(5*time.Second, n); got != 5*time.Second {
			t.Errorf("Fixed.Delay(5s, %d) = %v, want 5s", n, got)
		}
	}
}

func TestBackoffExponential(t *testing.T) {
	e := Exponential{MaxDelay: 60 * time.Second}
	cases := []struct {
		count int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		if got := e.Delay(time.Second, c.count); got != c.want {
			t.Errorf("Delay(1s, %d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestTrackerRecordAndCount(t *testing.T) {
	tr := NewTracker()
	if tr.RestartCount() != 0 {
		t.Fatal("new tracker must be empty")
	}
	if _, ok := tr.LastRestartTime(); ok {
		t.Fatal("new tracker has no last restart time")
	}

	tr.RecordRestart()
	tr.RecordRestart()
	if tr.RestartCount() != 2 {
		t.Fatalf("restart count = %d, want 2", tr.RestartCount())
	}
	if _, ok := tr.LastRestartTime(); !ok {
		t.Fatal("expected a last restart time")
	}
	if tr.CountRecent(time.Minute) != 2 {
		t.Fatalf("count recent = %d, want 2", tr.CountRecent(time.Minute))
	}
}

func TestTrackerClearAndPrune(t *testing.T) {
	tr := NewTracker()
	tr.RecordRestart()
	tr.RecordRestart()
	tr.Clear()
	if tr.RestartCount() != 0 {
		t.Fatal("expected cleared tracker to be empty")
	}

	tr.RecordRestart()
	tr.PruneOldRestarts(0)
	if tr.RestartCount() != 0 {
		t.Fatal("expected zero-window prune to discard everything")
	}
}

func TestCalculateDelayIntegration(t *testing.T) {
	p := FromConfig(true, 10, time.Second)
	tr := NewTracker()

	if got := p.CalculateDelay(tr); got != time.Second {
		t.Fatalf("delay at 0 restarts = %v, want 1s", got)
	}
	tr.RecordRestart()
	if got := p.CalculateDelay(tr); got != 2*time.Second {
		t.Fatalf("delay at 1 restart = %v, want 2s", got)
	}
	tr.RecordRestart()
	if got := p.CalculateDelay(tr); got != 4*time.Second {
		t.Fatalf("delay at 2 restarts = %v, want 4s", got)
	}
}
