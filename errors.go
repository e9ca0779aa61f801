package streams

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("streams: not found")
	ErrAlreadyExists = errors.New("streams: already exists")
	ErrValidation    = errors.New("streams: validation failed")
	ErrUnauthorized  = errors.New("streams: caller not authorized")
	ErrInvalidState  = errors.New("streams: invalid state")

	// Route errors
	ErrRouteNotFound    = errors.New("streams: route not found")
	ErrNothingClaimable = errors.New("streams: nothing claimable")
	ErrUnknownRouteKind = errors.New("streams: unknown route kind")

	// Invoice errors
	ErrInvoiceNotFound  = errors.New("streams: invoice not found")
	ErrInvoiceNotFunded = errors.New("streams: invoice not funded")

	// Registry errors
	ErrRecordNotFound = errors.New("streams: registry record not found")
	ErrInvalidDelta   = errors.New("streams: invalid claim delta")

	// Transfer errors
	ErrInsufficientFunds = errors.New("streams: insufficient funds")

	// Store errors
	ErrStoreNotReady = errors.New("streams: store not ready")
	ErrConflict      = errors.New("streams: concurrent update conflict")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("streams: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e ValidationError) Unwrap() error { return ErrValidation }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "streams: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("streams: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsValidation reports input rejected before any mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStateError reports an operation attempted in the wrong lifecycle state.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrInvoiceNotFunded)
}

// IsAuthorization reports a caller that does not match the expected party.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
// Precondition failures and compare-and-swap conflicts are terminal; the
// caller rereads state and resubmits.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady)
}
