/*
store.go - Persistence contracts for the cash desk engine

PURPOSE:
  Defines the interface between the engine and the transactional store.
  The engine assumes a request-per-operation model: nothing is cached in
  memory, every read goes to the store.

KEY INTERFACES:
  Store:     Shift, ledger entry and handover reads/writes
  TxStore:   Store + WithTx for all-or-nothing multi-row operations
  Directory: Staff lookup (identity/role provider)
  Backend:   TxStore + Directory, what the Desk needs

ATOMIC GUARANTEES REQUIRED FROM IMPLEMENTATIONS:
  - InsertOpenShift MUST fail with ErrShiftAlreadyOpen when the worker
    already has an open shift, as a single store operation (unique
    constraint or equivalent). A read-then-insert in the engine would race.
  - CloseShift, ResolveHandover and SettleEntry are conditional writes:
    they only apply when the row is still in its initial state and report
    ErrShiftNotOpen / ErrHandoverAlreadyResolved / ErrEntryAlreadySettled
    otherwise.
  - WithTx: if fn returns an error nothing written inside fn is visible.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (partial unique index on open shifts)
  - cashdesk/store/memory.go: in-memory, for tests and development

SEE ALSO:
  - shift.go, handover.go: the only writers
  - wallet.go, daily.go: read-only consumers
*/
package cashdesk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

// ShiftFilter selects shifts. Zero fields are ignored.
type ShiftFilter struct {
	WorkerID StaffID
	Day      *time.Time // matches ShiftDate
	Status   ShiftStatus
}

// EntryFilter selects ledger entries. Zero fields are ignored.
// From/To bound TxDate inclusively.
type EntryFilter struct {
	From     *time.Time
	To       *time.Time
	ShiftID  ShiftID
	Channels []Channel
	Statuses []EntryStatus
}

// HandoverFilter selects handovers. Zero fields are ignored; slice fields
// match any of their values. ReceivedFrom/ReceivedTo bound ReceivedAt.
type HandoverFilter struct {
	FromShiftIDs []ShiftID
	ToShiftIDs   []ShiftID
	ToStaffID    StaffID
	Statuses     []HandoverStatus
	CreatedTo    *time.Time
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// InsertOpenShift persists a new open shift. Returns ErrShiftAlreadyOpen
	// (possibly wrapped in *ShiftAlreadyOpenError) if the worker has one.
	InsertOpenShift(ctx context.Context, s Shift) error

	// CloseShift writes the closing fields of s, only if the stored row is
	// still open. Returns ErrShiftNotOpen otherwise.
	CloseShift(ctx context.Context, s Shift) error

	// AddOpeningCash increases the opening cash of an open shift.
	AddOpeningCash(ctx context.Context, id ShiftID, delta decimal.Decimal) error

	// AppendClosingNote appends one line to a shift's closing note.
	AppendClosingNote(ctx context.Context, id ShiftID, line string) error

	GetShift(ctx context.Context, id ShiftID) (Shift, error)

	// FindOpenShift returns the worker's open shift or ErrShiftNotFound.
	FindOpenShift(ctx context.Context, worker StaffID) (Shift, error)

	ListShifts(ctx context.Context, f ShiftFilter) ([]Shift, error)

	AppendEntry(ctx context.Context, e LedgerEntry) error
	GetEntry(ctx context.Context, id EntryID) (LedgerEntry, error)

	// SettleEntry moves a pending entry to confirmed or rejected.
	SettleEntry(ctx context.Context, id EntryID, status EntryStatus, by StaffID, at time.Time) error

	ListEntries(ctx context.Context, f EntryFilter) ([]LedgerEntry, error)

	InsertHandover(ctx context.Context, h Handover) error
	GetHandover(ctx context.Context, id HandoverID) (Handover, error)

	// ResolveHandover writes ToShiftID, Status, ReceivedBy and ReceivedAt
	// together, only if the stored row is pending.
	ResolveHandover(ctx context.Context, h Handover) error

	ListHandovers(ctx context.Context, f HandoverFilter) ([]Handover, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// fn must only use the Store it is given: implementations may hold an
	// exclusive lock or their only connection for the duration.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Directory is the identity/role provider contract.
type Directory interface {
	// LookupStaff returns ErrStaffNotFound for unknown ids.
	LookupStaff(ctx context.Context, id StaffID) (Staff, error)
}

// Backend is everything the Desk needs from persistence.
type Backend interface {
	TxStore
	Directory
}
