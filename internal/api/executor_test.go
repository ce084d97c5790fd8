package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/driver-agent/internal/agenterr"
)

func testExecutor(p RetryPolicy) (*Executor, *[]time.Duration) {
	slept := &[]time.Duration{}
	ex := NewExecutor(p, nil)
	ex.Sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return ex, slept
}

func TestDoExhaustsAndReturnsFallback(t *testing.T) {
	ex, slept := testExecutor(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Backoff: BackoffLinear})
	calls := 0
	v, err := Do(context.Background(), ex, "earnings",
		func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		},
		func(ctx context.Context) (string, bool) { return "cached", true },
	)
	if err != nil {
		t.Fatalf("fallback path must not raise, got %v", err)
	}
	if v != "cached" {
		t.Fatalf("expected cached value, got %q", v)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	// linear backoff: 1s then 2s, no wait after the final attempt
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("expected sleeps %v, got %v", want, *slept)
	}
}

func TestDoShortCircuitsOnSuccess(t *testing.T) {
	ex, _ := testExecutor(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	calls := 0
	v, err := Do(context.Background(), ex, "profile",
		func(ctx context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("flaky")
			}
			return 42, nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 2 {
		t.Fatalf("expected success on attempt 2, got v=%d calls=%d", v, calls)
	}
}

func TestDoSurfacesNetworkErrorWithoutFallback(t *testing.T) {
	ex, _ := testExecutor(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	_, err := Do(context.Background(), ex, "current-ride",
		func(ctx context.Context) (string, error) { return "", errors.New("down") }, nil)
	if !errors.Is(err, agenterr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestDoNeverRetriesAuthFailures(t *testing.T) {
	ex, _ := testExecutor(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})
	calls := 0
	_, err := Do(context.Background(), ex, "set-availability",
		func(ctx context.Context) (string, error) {
			calls++
			return "", agenterr.Auth("set-availability", errors.New("http 401"))
		},
		func(ctx context.Context) (string, bool) { return "cached", true },
	)
	if !errors.Is(err, agenterr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("auth failure must not be retried, got %d attempts", calls)
	}
}

func TestDoNeverRetriesValidationFailures(t *testing.T) {
	ex, _ := testExecutor(RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond})
	calls := 0
	_, err := Do(context.Background(), ex, "ride-requests",
		func(ctx context.Context) (string, error) {
			calls++
			return "", agenterr.Validation("ride-requests", errors.New("bad payload"))
		}, nil)
	if !errors.Is(err, agenterr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("validation failure must not be retried, got %d attempts", calls)
	}
}

func TestDoPerAttemptTimeoutCountsAsTransient(t *testing.T) {
	ex := NewExecutor(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, PerAttemptTimeout: 10 * time.Millisecond}, nil)
	ex.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	calls := 0
	_, err := Do(context.Background(), ex, "profile",
		func(ctx context.Context) (string, error) {
			calls++
			<-ctx.Done()
			return "", ctx.Err()
		}, nil)
	if !errors.Is(err, agenterr.ErrNetwork) {
		t.Fatalf("expected network-class error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("timeouts should consume retry budget, got %d attempts", calls)
	}
}

func TestDelayCurves(t *testing.T) {
	lin := RetryPolicy{BaseDelay: 100 * time.Millisecond, Backoff: BackoffLinear}
	if lin.Delay(3) != 300*time.Millisecond {
		t.Fatalf("linear delay wrong: %v", lin.Delay(3))
	}
	exp := RetryPolicy{BaseDelay: 100 * time.Millisecond, Backoff: BackoffExponential}
	d := exp.Delay(3)
	if d < 400*time.Millisecond || d > 600*time.Millisecond {
		t.Fatalf("exponential delay out of jitter band: %v", d)
	}
}
