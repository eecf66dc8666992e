package billing

import (
	"errors"
	"fmt"
)

// ErrCompanyNotFound is returned when the requester has no company to post
// jobs under.
var ErrCompanyNotFound = errors.New("company not found")

// ValidationError reports a job-creation request that can never succeed as
// sent. It is the caller's fault and not retryable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermanentError marks a webhook processing failure that redelivery cannot
// fix, e.g. an event with no resolvable correlation metadata. The webhook
// handler answers these with a client error so the provider stops retrying.
type PermanentError struct {
	err error
}

func (e *PermanentError) Error() string { return e.err.Error() }

func (e *PermanentError) Unwrap() error { return e.err }

// Permanentf builds a PermanentError with fmt.Errorf semantics.
func Permanentf(format string, args ...any) error {
	return &PermanentError{err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err is a permanent processing failure. All
// other webhook errors are treated as transient and surfaced as server
// errors so the provider redelivers the event.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
