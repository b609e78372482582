package ports

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by storage lookups for absent keys.
var ErrNotFound = errors.New("not found")

// Kind classifies a failure at an I/O boundary.
type Kind int

const (
	// KindTransient covers network errors, timeouts and 5xx responses.
	KindTransient Kind = iota
	KindRateLimited
	KindAuth
	// KindInvalid means the request itself was rejected and retrying it
	// unchanged will not help.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindInvalid:
		return "invalid"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CallError is the typed failure returned by platform, backend and feed calls.
type CallError struct {
	Op         string
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt may succeed.
func (e *CallError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// NewCallError wraps err with an operation name and kind.
func NewCallError(op string, kind Kind, err error) *CallError {
	return &CallError{Op: op, Kind: kind, Err: err}
}

// KindOf classifies any error. Errors that are not CallErrors count as
// transient, except context cancellation which is reported as invalid so
// callers stop instead of retrying.
func KindOf(err error) Kind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindInvalid
	}
	return KindTransient
}

// IsRateLimited reports whether err carries the rate-limit kind.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}
