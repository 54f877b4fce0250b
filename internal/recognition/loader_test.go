package recognition

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoaderLoadsOnce(t *testing.T) {
	calls := 0
	l := NewModelLoader(func(ctx context.Context) error {
		calls++
		return nil
	}, time.Second, 5, 10*time.Second)

	for i := 0; i < 3; i++ {
		if err := l.Ensure(context.Background()); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}

	if calls != 1 {
		t.Errorf("load called %d times; want 1", calls)
	}
	if l.State() != StateReady {
		t.Errorf("state = %v; want ready", l.State())
	}
}

func TestLoaderCooldown(t *testing.T) {
	clock := time.Now()
	calls := 0
	fail := true

	l := NewModelLoader(func(ctx context.Context) error {
		calls++
		if fail {
			return errors.New("model file missing")
		}
		return nil
	}, time.Second, 5, 10*time.Second)
	l.now = func() time.Time { return clock }

	// First attempt fails and opens the breaker.
	if err := l.Ensure(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Ensure after failure: %v; want ErrModelUnavailable", err)
	}
	if l.State() != StateFailed {
		t.Fatalf("state = %v; want failed", l.State())
	}

	// During the 1s cooldown no load is attempted.
	if err := l.Ensure(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Ensure during cooldown: %v", err)
	}
	if calls != 1 {
		t.Fatalf("load attempted during cooldown; calls = %d", calls)
	}

	// After the cooldown the next attempt runs and succeeds.
	fail = false
	clock = clock.Add(2 * time.Second)
	if err := l.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure after cooldown: %v", err)
	}
	if calls != 2 {
		t.Errorf("load called %d times; want 2", calls)
	}
	if l.State() != StateReady {
		t.Errorf("state = %v; want ready", l.State())
	}
}

func TestLoaderExponentialBackoff(t *testing.T) {
	l := NewModelLoader(nil, time.Second, 5, 10*time.Second)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{8, 10 * time.Second},
	}
	for _, tc := range tests {
		if got := l.cooldown(tc.failures); got != tc.want {
			t.Errorf("cooldown(%d) = %v; want %v", tc.failures, got, tc.want)
		}
	}
}

func TestLoaderGivesUpAfterMaxAttempts(t *testing.T) {
	clock := time.Now()
	calls := 0

	l := NewModelLoader(func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	}, time.Second, 2, 10*time.Second)
	l.now = func() time.Time { return clock }

	// Burn both attempts, advancing past each cooldown.
	for i := 0; i < 2; i++ {
		if err := l.Ensure(context.Background()); !errors.Is(err, ErrModelUnavailable) {
			t.Fatalf("attempt %d: %v", i, err)
		}
		clock = clock.Add(time.Minute)
	}
	if calls != 2 {
		t.Fatalf("load called %d times; want 2", calls)
	}

	// Budget exhausted: no more attempts no matter how long we wait.
	clock = clock.Add(time.Hour)
	if err := l.Ensure(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Ensure after exhaustion: %v", err)
	}
	if calls != 2 {
		t.Errorf("load attempted after exhaustion; calls = %d", calls)
	}

	// Reset restores the budget.
	l.Reset()
	if l.State() != StateUnloaded {
		t.Fatalf("state after Reset = %v; want unloaded", l.State())
	}
	_ = l.Ensure(context.Background())
	if calls != 3 {
		t.Errorf("load not attempted after Reset; calls = %d", calls)
	}
}
