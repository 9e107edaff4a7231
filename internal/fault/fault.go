// Package fault defines the error taxonomy surfaced by the engine. Callers
// classify failures with errors.Is against these sentinels; packages wrap
// them with context via fmt.Errorf("...: %w", ...).
package fault

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no, invalid, or expired session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the session is valid but scope denies the target.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means a get by id missed.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means a uniqueness violation.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidInput means a required field is missing, an enum value is
	// unknown, or a monetary field is negative.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransient means lock contention, timeout, or store unavailable.
	// Retryable by the caller; the engine itself never retries.
	ErrTransient = errors.New("transient")
	// ErrInternal means an invariant violation detected after a write.
	ErrInternal = errors.New("internal")
)

// Invalid wraps ErrInvalidInput with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Store classifies an error coming back from the persistence layer.
// Cancellation and deadline expiry surface as Transient so the caller can
// decide whether to retry.
func Store(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
