package process

import "testing"

func TestRecordRestart(t *testing.T) {
	s := NewStats(100)
	s.CPUUsage = 42
	s.MemoryUsage = 1024

	s.RecordRestart(200)

	if s.Restarts != 1 {
		t.Fatalf("restarts = %d, want 1", s.Restarts)
	}
	if s.PID != 200 {
		t.Fatalf("pid = %d, want 200", s.PID)
	}
	if s.CPUUsage != 0 || s.MemoryUsage != 0 {
		t.Fatalf("usage not reset: cpu=%v mem=%v", s.CPUUsage, s.MemoryUsage)
	}
	if s.LastRestart == nil {
		t.Fatal("expected last_restart to be set")
	}
}
