// Package fault defines the engine's error kinds and the retry policy for
// outbound adapter calls.
package fault

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or out-of-range input, rejected before
// any state mutation. Callers recover by correcting the request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks an idempotency key reused with mismatched parameters
// or a lost concurrent update. Retrying with the same key is safe only when
// the parameters also match.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// Conflictf builds a ConflictError.
func Conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// AdapterFailure marks a failed or timed-out external verification call.
// It must deny, never default-approve.
type AdapterFailure struct {
	Provider string
	Op       string
	Err      error
}

func (e *AdapterFailure) Error() string {
	return fmt.Sprintf("adapter %s.%s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *AdapterFailure) Unwrap() error { return e.Err }

// Adapter wraps err as an AdapterFailure for the given provider operation.
func Adapter(provider, op string, err error) error {
	return &AdapterFailure{Provider: provider, Op: op, Err: err}
}

// InvariantViolation marks a broken accounting invariant (failed ledger
// replay, negative available liquidity). Fatal: the operation halts and the
// violation is logged for manual reconciliation, never auto-corrected.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return e.Msg }

// Invariantf builds an InvariantViolation.
func Invariantf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether any error in the chain is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether any error in the chain is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsAdapterFailure reports whether any error in the chain is an
// AdapterFailure.
func IsAdapterFailure(err error) bool {
	var a *AdapterFailure
	return errors.As(err, &a)
}

// IsInvariant reports whether any error in the chain is an
// InvariantViolation.
func IsInvariant(err error) bool {
	var i *InvariantViolation
	return errors.As(err, &i)
}
