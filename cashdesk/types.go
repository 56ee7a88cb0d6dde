/*
Package cashdesk provides the front-desk cash shift engine.

PURPOSE:
  Every front-desk worker runs a cash drawer during a tracked shift. Money
  moves are recorded as ledger entries, and when a shift closes the counted
  drawer is handed to a named recipient: a manager, or the worker who opens
  the next shift. This package owns that lifecycle and the reconciliation of
  handovers. Everything else (rooms, reservations, rendering) lives elsewhere
  and only talks to the engine through the Store and Directory contracts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift: one worker's session with the drawer (open -> closed, once)
  - LedgerEntry: a positive amount with a direction on a payment channel
  - Handover: the counted cash leaving a closing shift for a recipient
  - Staff: a worker or manager known to the identity provider

DESIGN PRINCIPLES:
  1. The store is the only source of truth. Summaries are recomputed per read.
  2. Precision: amounts use decimal.Decimal, never float64.
  3. One open shift per worker, enforced by the store in a single write.
  4. Resolution fields of a handover are written together and never revert.

SEE ALSO:
  - store.go: persistence contracts
  - shift.go: ShiftManager (open / close / summary)
  - handover.go: HandoverReconciler (claim / manager receipt)
  - wallet.go: WalletAggregator
  - daily.go: DailySummaryCalculator
*/
package cashdesk

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type ShiftID string
type EntryID string
type HandoverID string

// =============================================================================
// STAFF - Supplied by the identity/role provider
// =============================================================================

type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

type Staff struct {
	ID     StaffID
	Name   string
	Role   Role
	Active bool
}

func (s Staff) IsManager() bool { return s.Role == RoleManager }

// =============================================================================
// SHIFT
// =============================================================================

type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "open"
	ShiftClosed ShiftStatus = "closed"
)

// Shift is a worker's tracked session with a cash drawer.
//
// INVARIANTS:
//   - At most one Shift with Status=open per WorkerID.
//   - open -> closed happens exactly once. There is no reopen.
//   - OpeningCash only grows while open, by claimed handovers.
type Shift struct {
	ID        ShiftID
	WorkerID  StaffID
	ShiftDate time.Time // calendar day, midnight UTC
	Status    ShiftStatus

	OpeningCash decimal.Decimal

	// Set at close. ExpectedCash is the ledger position at close time,
	// CountedCash the physical count, ClosingCash what was handed over.
	ExpectedCash decimal.Decimal
	CountedCash  decimal.Decimal
	ClosingCash  decimal.Decimal
	Difference   decimal.Decimal

	OpeningNote string
	ClosingNote string // append-only audit trail of handover events

	OpenedAt time.Time
	ClosedAt *time.Time
}

func (s Shift) IsOpen() bool { return s.Status == ShiftOpen }

// =============================================================================
// LEDGER ENTRY - Signed monetary record ("transaction")
// =============================================================================

type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

type Channel string

const (
	ChannelCash   Channel = "cash"
	ChannelCard   Channel = "card"
	ChannelMobile Channel = "mobile"
	// ChannelBank is tracked separately and never part of a wallet or drawer.
	ChannelBank Channel = "bank"
)

// WalletChannels are the channels folded by the WalletAggregator.
var WalletChannels = []Channel{ChannelCash, ChannelCard, ChannelMobile}

func (c Channel) Valid() bool {
	switch c {
	case ChannelCash, ChannelCard, ChannelMobile, ChannelBank:
		return true
	}
	return false
}

func (c Channel) InWallet() bool { return c.Valid() && c != ChannelBank }

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryConfirmed EntryStatus = "confirmed"
	EntryRejected  EntryStatus = "rejected"
)

type SourceType string

const (
	SourceManual      SourceType = "manual"
	SourceDomainEvent SourceType = "domain_event"
	SourceTransfer    SourceType = "transfer"
)

// LedgerEntry is a single monetary movement.
// Amount is always positive; Direction carries the sign.
// Status moves pending -> confirmed or pending -> rejected, once.
type LedgerEntry struct {
	ID          EntryID
	TxDate      time.Time
	Direction   Direction
	Amount      decimal.Decimal
	Channel     Channel
	Status      EntryStatus
	Source      SourceType
	ShiftID     ShiftID // empty when recorded outside any shift
	Description string

	CreatedBy   StaffID
	CreatedAt   time.Time
	ConfirmedBy StaffID
	ConfirmedAt *time.Time
}

// Signed returns +Amount for income and -Amount for expense.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == Expense {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// HANDOVER - Cash leaving a closing shift
// =============================================================================

type HandoverStatus string

const (
	HandoverPending           HandoverStatus = "pending"
	HandoverReceivedByStaff   HandoverStatus = "received_by_staff"
	HandoverReceivedByManager HandoverStatus = "received_by_manager"
)

// Handover records counted cash moving from a closing shift to a recipient.
//
// Exactly one of ToManagerID / ToStaffID is set at creation.
// A handover is pending iff ToShiftID is empty and Status is pending.
// Manager-resolved handovers never acquire a ToShiftID; staff-resolved ones always do.
type Handover struct {
	ID          HandoverID
	FromShiftID ShiftID
	Amount      decimal.Decimal
	TxDate      time.Time
	Note        string
	CreatedBy   StaffID
	CreatedAt   time.Time

	ToManagerID StaffID
	ToStaffID   StaffID

	ToShiftID  ShiftID
	Status     HandoverStatus
	ReceivedBy StaffID
	ReceivedAt *time.Time
}

func (h Handover) IsPending() bool {
	return h.Status == HandoverPending && h.ToShiftID == ""
}

// =============================================================================
// REQUESTS / RESULTS
// =============================================================================

// Recipient names who receives the drawer at close. Exactly one field is set.
type Recipient struct {
	ManagerID    StaffID
	NextWorkerID StaffID
}

// CloseRequest replaces the interactive prompts of a front-desk UI with an
// explicit, validated request.
type CloseRequest struct {
	ShiftID     ShiftID
	CountedCash decimal.Decimal
	Recipient   Recipient
	Note        string
	ActorID     StaffID // who performs the close; defaults to the shift's worker
}

// ShiftSummary is the on-demand ledger position of a shift.
type ShiftSummary struct {
	ShiftID      ShiftID
	OpeningCash  decimal.Decimal
	NetIncome    decimal.Decimal
	NetExpense   decimal.Decimal
	ExpectedCash decimal.Decimal
}

// ClaimResult is what a newly opened shift absorbed. The UI must surface
// Handovers to the worker for acknowledgement.
type ClaimResult struct {
	Amount    decimal.Decimal
	Handovers []Handover
}

// OpenResult is returned by ShiftManager.OpenShift.
type OpenResult struct {
	Shift   Shift
	Claimed ClaimResult
}

// DailySummary is what a worker received and delivered on one calendar day.
type DailySummary struct {
	WorkerID  StaffID
	Day       time.Time
	Received  decimal.Decimal
	Delivered decimal.Decimal
	Net       decimal.Decimal
}
