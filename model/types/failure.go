package types

import (
	"context"
	"errors"
)

// FailureKind is the transient/permanent vocabulary shared by the ledger,
// the orchestrator and the supervisor.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// TransientError marks a failure that is expected to succeed on retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient, nil stays nil.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// NewPermanentError wraps err as permanent, nil stays nil.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is explicitly transient or a deadline.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *TransientError
	if errors.As(err, &t) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err is explicitly permanent or a logic error
// that cannot succeed on retry.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return true
	}
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrGraph) || errors.Is(err, ErrInvalidTransition)
}

// Classify returns the failure kind of err. Unclassified errors are treated
// as transient so that they are retried.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case IsPermanent(err):
		return FailurePermanent
	default:
		return FailureTransient
	}
}
