package transport

import (
	"testing"
	"time"
)

func TestBackoffDelayCapsAtCeiling(t *testing.T) {
	t.Parallel()

	ceiling := 5 * time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(attempt, ceiling)
		if d < 0 {
			t.Fatalf("attempt %d: expected non-negative delay, got %v", attempt, d)
		}
		if d > ceiling+ceiling/4+time.Millisecond {
			t.Fatalf("attempt %d: expected delay within ceiling+jitter, got %v", attempt, d)
		}
	}
}

func TestBackoffDelayGrowsWithAttempt(t *testing.T) {
	t.Parallel()

	ceiling := time.Minute
	first := backoffDelay(1, ceiling)
	fourth := backoffDelay(4, ceiling)
	if fourth <= first {
		t.Fatalf("expected backoff to grow: attempt1=%v attempt4=%v", first, fourth)
	}
}

func TestTCPStateString(t *testing.T) {
	t.Parallel()

	cases := map[TCPState]string{
		StateInit:        "init",
		StateHandshaking: "handshaking",
		StateConnected:   "connected",
		StateDead:        "dead",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: want %q, got %q", state, want, got)
		}
	}
}
