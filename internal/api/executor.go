package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/driver-agent/internal/agenterr"
	"github.com/example/driver-agent/internal/observability"
)

// Executor runs one logical backend request with bounded retries and
// optional graceful degradation to a cached value.
type Executor struct {
	Policy RetryPolicy
	Logger *slog.Logger

	// Sleep is injectable so tests never wait on real backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(policy RetryPolicy, logger *slog.Logger) *Executor {
	return &Executor{Policy: policy, Logger: logger}
}

func (ex *Executor) sleep(ctx context.Context, d time.Duration) error {
	if ex.Sleep != nil {
		return ex.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (ex *Executor) logger() *slog.Logger {
	if ex.Logger != nil {
		return ex.Logger
	}
	return slog.Default()
}

// Do attempts call up to the policy's budget. A success at any attempt
// short-circuits. Auth and validation failures surface immediately and
// never consume the fallback. On exhaustion the fallback value is
// returned when available, otherwise a network error wrapping the last
// cause.
func Do[T any](ctx context.Context, ex *Executor, op string, call func(context.Context) (T, error), fallback func(context.Context) (T, bool)) (T, error) {
	var zero T
	p := ex.Policy
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		observability.RequestAttempts.WithLabelValues(op).Inc()

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}
		v, err := call(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = agenterr.Timeout(op, attempt, err)
		}
		if !agenterr.Retryable(err) {
			return zero, err
		}
		lastErr = err
		ex.logger().Warn("request attempt failed",
			"op", op, "attempt", attempt, "max_attempts", p.MaxAttempts, "error", err)

		if attempt < p.MaxAttempts {
			if serr := ex.sleep(ctx, p.Delay(attempt)); serr != nil {
				return zero, agenterr.Network(op, attempt, serr)
			}
		}
	}

	if fallback != nil {
		if v, ok := fallback(ctx); ok {
			observability.FallbacksServed.WithLabelValues(op).Inc()
			ex.logger().Info("serving cached fallback", "op", op)
			return v, nil
		}
	}
	return zero, agenterr.Network(op, p.MaxAttempts, lastErr)
}
