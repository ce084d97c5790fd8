package agenterr

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks transient failures worth retrying.
	ErrNetwork = errors.New("network error")

	// ErrAuth marks authentication failures; never retried, the caller
	// must re-authenticate.
	ErrAuth = errors.New("authentication required")

	// ErrValidation marks malformed input (bad coordinates, empty ids);
	// never retried, the offending item is discarded.
	ErrValidation = errors.New("validation failed")

	// ErrTimeout is a degenerate network error raised when a
	// per-attempt deadline elapses. It wraps ErrNetwork so retry
	// budgets treat it as transient.
	ErrTimeout = fmt.Errorf("%w: deadline elapsed", ErrNetwork)

	// ErrAlreadyResolved is returned when accept/reject is called on an
	// offer that already reached a terminal state.
	ErrAlreadyResolved = errors.New("offer already resolved")
)

// OpError wraps a taxonomy sentinel with the logical operation and the
// attempt count that produced it.
type OpError struct {
	Op       string
	Attempts int
	Kind     error // one of the sentinels above
	Err      error // underlying cause, may be nil
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Op, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v after %d attempt(s)", e.Op, e.Kind, e.Attempts)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Network builds a transient failure for op.
func Network(op string, attempts int, cause error) error {
	return &OpError{Op: op, Attempts: attempts, Kind: ErrNetwork, Err: cause}
}

// Timeout builds a deadline failure for op.
func Timeout(op string, attempts int, cause error) error {
	return &OpError{Op: op, Attempts: attempts, Kind: ErrTimeout, Err: cause}
}

// Auth builds a non-retryable authentication failure for op.
func Auth(op string, cause error) error {
	return &OpError{Op: op, Attempts: 1, Kind: ErrAuth, Err: cause}
}

// Validation builds a non-retryable malformed-input failure.
func Validation(op string, cause error) error {
	return &OpError{Op: op, Attempts: 1, Kind: ErrValidation, Err: cause}
}

// Retryable reports whether err should consume retry budget.
// Auth and validation failures short-circuit; timeouts count as
// transient like any other network failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
