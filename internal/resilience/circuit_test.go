package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func transientErr() error {
	return NewTransientError(errors.New("upstream overloaded"), 529)
}

func TestCircuitBreaker_ClosedPassThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if !called {
		t.Error("fn was not called in closed state")
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return transientErr()
		})
	}
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("State() after %d failures = %v, want open", 3, got)
	}

	// Next call is rejected without invoking fn.
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn was called while circuit open")
	}
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return errors.New("invalid request")
		})
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want closed after permanent errors", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})

	fail := func(ctx context.Context) error { return transientErr() }
	ok := func(ctx context.Context) error { return nil }

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), ok)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want closed (success resets the streak)", got)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	// Advance past the reset timeout; the next call is a probe.
	now = now.Add(31 * time.Second)
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("State() = %v, want half-open after reset timeout", got)
	}

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() after successful probe = %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})
	now = now.Add(31 * time.Second)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})
	if got := cb.State(); got != CircuitOpen {
		t.Errorf("State() after failed probe = %v, want open", got)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})
	cb.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestTierBreakers_PerTierIsolation(t *testing.T) {
	tb := NewTierBreakers(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})

	_ = tb.Get("high").Execute(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})

	states := tb.States()
	if states["high"] != CircuitOpen {
		t.Errorf("high tier state = %v, want open", states["high"])
	}
	if got := tb.Get("mid").State(); got != CircuitClosed {
		t.Errorf("mid tier state = %v, want closed", got)
	}

	// Get returns the same breaker instance per tier.
	if tb.Get("high") != tb.Get("high") {
		t.Error("Get() returned different instances for the same tier")
	}
}
