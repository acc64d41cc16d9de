package cgroup

import "testing"

func TestQuotaFormula(t *testing.T) {
	cases := map[int]int{
		50:  50000,
		100: 100000,
		200: 200000,
		1:   1000,
	}
	for percent, want := range cases {
		got := percent * period / 100
		if got != want {
			t.Errorf("quota(%d%%) = %d, want %d", percent, got, want)
		}
	}
}

func TestNewManagerPath(t *testing.T) {
	m := New("web-1")
	if m.path == "" || m.name != "web-1" {
		t.Fatalf("unexpected manager: %+v", m)
	}
}
