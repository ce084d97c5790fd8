package api

import (
	"math/rand"
	"time"
)

// Backoff selects the delay curve between retry attempts.
type Backoff string

const (
	// BackoffLinear waits baseDelay*attempt, the observed production
	// behavior.
	BackoffLinear Backoff = "linear"
	// BackoffExponential doubles per attempt with jitter; preferred for
	// new deployments.
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy is configuration, not mutable state.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	Backoff           Backoff
	PerAttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		Backoff:           BackoffLinear,
		PerAttemptTimeout: 30 * time.Second,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Backoff {
	case BackoffExponential:
		d := p.BaseDelay << (attempt - 1)
		// up to 50% jitter so synchronized clients fan out
		return d + time.Duration(rand.Int63n(int64(d)/2+1))
	default:
		return p.BaseDelay * time.Duration(attempt)
	}
}
