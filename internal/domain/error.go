package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidState          = errors.New("invalid state")
	ErrRemote                = errors.New("remote service failure")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrIdentityRequired      = errors.New("identity required")
	ErrCheckoutInFlight      = errors.New("checkout already in progress")
	ErrOrderFinalized        = errors.New("order already finalized")
	ErrInvalidSignature      = errors.New("invalid payment signature")
	ErrRateLimited           = errors.New("rate limited")

	// ErrPaidButUnrecorded means the gateway reported success but the order
	// ledger could not be updated. Money has moved; never report as a failure.
	ErrPaidButUnrecorded = errors.New("payment succeeded but was not recorded")
)

// RemoteError is returned for any failure of the document store, the referral
// endpoint or the payment gateway. Message carries the upstream text when the
// remote service returned one.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": remote failure"
}

// Unwrap exposes both ErrRemote and the underlying cause to errors.Is.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// NewRemoteError wraps err as a RemoteError for op. A nil err yields nil.
func NewRemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// Validationf builds an ErrValidation with a human-readable reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
