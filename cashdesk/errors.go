/*
errors.go - Centralized error types for the cash desk engine

PURPOSE:
  All error kinds in one place. Every business error is caller-visible and
  is NOT retried automatically: it is an invalid request or a legitimate
  conflict, not a transient failure. Only ErrStoreBusy is retryable, and
  only read paths retry it.

ERROR CATEGORIES:
  1. Lifecycle conflicts - ShiftAlreadyOpen, ShiftNotOpen, HandoverAlreadyResolved
  2. Validation errors   - RecipientRequired, InvalidAmount, InvalidEntry
  3. Lookup errors       - *NotFound
  4. Store errors        - StoreBusy (transient)

USAGE:
  if errors.Is(err, cashdesk.ErrShiftAlreadyOpen) {
      // tell the worker which shift is already open
  }

SEE ALSO:
  - api/errors.go: maps each kind to an HTTP status and code
  - store/sqlite/sqlite.go: translates SQLite constraint/busy errors
*/
package cashdesk

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrShiftAlreadyOpen        = errors.New("worker already has an open shift")
	ErrShiftNotOpen            = errors.New("shift is not open")
	ErrRecipientRequired       = errors.New("exactly one recipient (manager or next worker) is required")
	ErrInvalidAmount           = errors.New("amount must be a non-negative number")
	ErrRecipientNotFound       = errors.New("recipient not found")
	ErrRecipientNotManager     = errors.New("recipient is not a manager")
	ErrHandoverAlreadyResolved = errors.New("handover already resolved")

	ErrShiftNotFound       = errors.New("shift not found")
	ErrHandoverNotFound    = errors.New("handover not found")
	ErrEntryNotFound       = errors.New("ledger entry not found")
	ErrStaffNotFound       = errors.New("staff member not found")
	ErrEntryAlreadySettled = errors.New("ledger entry already confirmed or rejected")
	ErrInvalidEntry        = errors.New("invalid ledger entry")
	ErrForbidden           = errors.New("operation requires a manager")

	// ErrStoreBusy wraps transient store failures (lock contention, busy database).
	ErrStoreBusy = errors.New("store temporarily unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ShiftAlreadyOpenError names the shift that blocks a new open.
type ShiftAlreadyOpenError struct {
	WorkerID StaffID
	ShiftID  ShiftID
}

func (e *ShiftAlreadyOpenError) Error() string {
	if e.ShiftID == "" {
		return fmt.Sprintf("worker %s already has an open shift", e.WorkerID)
	}
	return fmt.Sprintf("worker %s already has an open shift (%s)", e.WorkerID, e.ShiftID)
}

func (e *ShiftAlreadyOpenError) Unwrap() error { return ErrShiftAlreadyOpen }

// RecipientError explains why a close recipient was refused.
type RecipientError struct {
	ID  StaffID
	Err error // ErrRecipientNotFound or ErrRecipientNotManager
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.ID)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// AmountError carries the rejected amount.
type AmountError struct {
	Field string
	Value string
	Rule  string // ">= 0", "> 0" or "a number"
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid %s %q: must be %s", e.Field, e.Value, e.Rule)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreBusy)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrRecipientRequired) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidEntry) ||
		errors.Is(err, ErrRecipientNotManager)
}

// IsConflict returns true for state conflicts (the request was valid, the
// current state forbids it).
func IsConflict(err error) bool {
	return errors.Is(err, ErrShiftAlreadyOpen) ||
		errors.Is(err, ErrShiftNotOpen) ||
		errors.Is(err, ErrHandoverAlreadyResolved) ||
		errors.Is(err, ErrEntryAlreadySettled)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrHandoverNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrRecipientNotFound)
}
