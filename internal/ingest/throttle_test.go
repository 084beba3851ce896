package ingest

import (
	"testing"
	"time"
)

func TestThrottle(t *testing.T) {
	t.Parallel()

	th := NewThrottle(3000*time.Second, 10)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	steps := []struct {
		ip   string
		at   time.Duration
		want bool
	}{
		{"a", 0, true},
		{"a", time.Minute, false},
		{"b", time.Minute, true},
		{"a", 2999 * time.Second, false},
		{"a", 3000 * time.Second, true},
		// the rejected attempt at 2999s did not move the window
		{"a", 3001 * time.Second, false},
	}
	for i, s := range steps {
		if got := th.Admit(s.ip, t0.Add(s.at)); got != s.want {
			t.Errorf("step %d: Admit(%s, +%v) = %v, want %v", i, s.ip, s.at, got, s.want)
		}
	}
}

func TestThrottle_AllowedDoesNotRecord(t *testing.T) {
	t.Parallel()

	th := NewThrottle(time.Hour, 10)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !th.Allowed("a", t0.Add(time.Duration(i)*time.Minute)) {
			t.Fatalf("Allowed #%d = false before any admission", i)
		}
	}
	if !th.Admit("a", t0.Add(5*time.Minute)) {
		t.Fatal("Admit after checks = false")
	}
	if th.Allowed("a", t0.Add(6*time.Minute)) {
		t.Fatal("Allowed = true inside the window after Admit")
	}
}

func TestThrottle_Defaults(t *testing.T) {
	t.Parallel()

	th := NewThrottle(0, 0)
	if th.window != 3000*time.Second {
		t.Errorf("window = %v", th.window)
	}
}
