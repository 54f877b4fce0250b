package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LoaderState is the model loader's circuit-breaker state.
type LoaderState int

const (
	StateUnloaded LoaderState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s LoaderState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// LoadFunc performs the actual (slow) model load.
type LoadFunc func(ctx context.Context) error

// ModelLoader wraps model loading in an explicit retry state machine:
// Unloaded -> Loading -> Ready, or Failed(count, lastFailure) -> cooldown
// expiry -> Loading. Failures back off exponentially up to a cap; after
// maxAttempts the load is terminal until Reset.
type ModelLoader struct {
	mu          sync.Mutex
	state       LoaderState
	failures    int
	lastFailure time.Time

	load        LoadFunc
	timeout     time.Duration
	maxAttempts int
	backoffCap  time.Duration
	now         func() time.Time
}

func NewModelLoader(load LoadFunc, timeout time.Duration, maxAttempts int, backoffCap time.Duration) *ModelLoader {
	return &ModelLoader{
		load:        load,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoffCap:  backoffCap,
		now:         time.Now,
	}
}

// State returns the current loader state.
func (l *ModelLoader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// cooldown returns the wait before the given retry attempt: 1s, 2s, 4s...
// capped at backoffCap.
func (l *ModelLoader) cooldown(failures int) time.Duration {
	d := time.Second << uint(failures-1)
	if d > l.backoffCap || d <= 0 {
		d = l.backoffCap
	}
	return d
}

// Ensure makes sure the model is loaded, driving the state machine.
// Returns ErrModelUnavailable when the breaker is open (cooldown not yet
// expired) or the attempt budget is exhausted.
func (l *ModelLoader) Ensure(ctx context.Context) error {
	l.mu.Lock()

	switch l.state {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateLoading:
		l.mu.Unlock()
		return fmt.Errorf("%w: load in progress", ErrModelUnavailable)
	case StateFailed:
		if l.failures >= l.maxAttempts {
			l.mu.Unlock()
			return fmt.Errorf("%w: gave up after %d attempts", ErrModelUnavailable, l.failures)
		}
		if l.now().Sub(l.lastFailure) < l.cooldown(l.failures) {
			l.mu.Unlock()
			return fmt.Errorf("%w: in cooldown", ErrModelUnavailable)
		}
	}

	l.state = StateLoading
	l.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := l.load(loadCtx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.failures++
		l.lastFailure = l.now()
		l.state = StateFailed
		slog.Warn("model load failed", "attempt", l.failures, "error", err)
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	l.state = StateReady
	l.failures = 0
	slog.Info("model loaded")
	return nil
}

// Reset returns the loader to Unloaded, clearing the failure budget.
// Used by an explicit operator retry.
func (l *ModelLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateUnloaded
	l.failures = 0
}
