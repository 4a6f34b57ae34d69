// Package errs defines the error types shared by the calculation and ledger
// packages. Callers are expected to branch with errors.As.
package errs

import (
	"fmt"

	"github.com/mfuentes/unitledger/pkg/money"
)

// ValidationError reports malformed or out-of-range input. Field names the
// offending input so the caller can surface it verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError reports a debit that would drive a no-overdraft
// account negative. The balance is left untouched when this is returned.
type InsufficientBalanceError struct {
	AccountID string
	Balance   money.Money
	Requested money.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: have %s, requested %s",
		e.AccountID, e.Balance, e.Requested)
}

// InvariantViolation reports a failed internal conservation check. It always
// indicates a bug in the calculation code, never bad caller input, and must
// be propagated rather than swallowed.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// NewInvariant builds an InvariantViolation for the given operation.
func NewInvariant(op, format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}
