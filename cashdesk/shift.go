/*
shift.go - Shift lifecycle: open, summarize, close

PURPOSE:
  Owns the state machine of a worker's shift (open -> closed) and the
  shift's net cash position.

OPEN:
  1. Insert the open shift. The store rejects a second open shift for the
     same worker in the same write (no read-then-insert in here).
  2. In the same transaction, claim every pending handover addressed to the
     worker and add the claimed total to opening cash.

CLOSE (one transaction, all or nothing):
  1. Re-read the shift; it must still be open.
  2. Snapshot expected cash, store counted/closing cash and the difference.
  3. Create the handover (amount = counted cash, not expected cash).
  4. If the recipient is a manager, resolve it immediately.

SUMMARY:
  expected = opening + confirmed income - confirmed expense, over the
  shift's own entries on drawer channels. Pending entries are excluded.
  Always recomputed, never cached.

SEE ALSO:
  - handover.go: claim / manager receipt
  - store.go: InsertOpenShift, CloseShift contracts
*/
package cashdesk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OpenRequest opens a shift for WorkerID on ShiftDate (today if zero).
type OpenRequest struct {
	WorkerID  StaffID
	ShiftDate time.Time
	Note      string
}

// CloseResult is the closed shift and the handover it produced.
type CloseResult struct {
	Shift    Shift
	Handover Handover
}

// ShiftManager owns the shift state machine.
type ShiftManager struct {
	deps
	handovers *HandoverReconciler
	drawer    []Channel
}

// =============================================================================
// OPEN
// =============================================================================

// OpenShift creates an open shift and claims pending handovers into it.
// Returns *ShiftAlreadyOpenError if the worker already has an open shift;
// in that case no row is created.
func (m *ShiftManager) OpenShift(ctx context.Context, req OpenRequest) (OpenResult, error) {
	worker, err := m.dir.LookupStaff(ctx, req.WorkerID)
	if err != nil {
		return OpenResult{}, err
	}

	now := m.now()
	shiftDate := req.ShiftDate
	if shiftDate.IsZero() {
		shiftDate = now
	}

	shift := Shift{
		ID:           ShiftID(m.newID()),
		WorkerID:     worker.ID,
		ShiftDate:    Day(shiftDate),
		Status:       ShiftOpen,
		OpeningCash:  decimal.Zero,
		ExpectedCash: decimal.Zero,
		CountedCash:  decimal.Zero,
		ClosingCash:  decimal.Zero,
		Difference:   decimal.Zero,
		OpeningNote:  req.Note,
		OpenedAt:     now,
	}

	var claimed ClaimResult
	err = m.store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertOpenShift(ctx, shift); err != nil {
			return err
		}
		c, err := m.handovers.claimPending(ctx, tx, worker, shift, now)
		if err != nil {
			return err
		}
		claimed = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrShiftAlreadyOpen) {
			return OpenResult{}, m.alreadyOpen(ctx, worker.ID, err)
		}
		return OpenResult{}, fmt.Errorf("open shift for %s: %w", worker.ID, err)
	}

	shift.OpeningCash = claimed.Amount
	m.log.Info("shift opened",
		"shift_id", shift.ID,
		"worker_id", shift.WorkerID,
		"shift_date", shift.ShiftDate.Format(DayLayout),
		"claimed_amount", claimed.Amount.StringFixed(2),
		"claimed_handovers", len(claimed.Handovers))

	return OpenResult{Shift: shift, Claimed: claimed}, nil
}

// alreadyOpen enriches a store conflict with the id of the blocking shift.
func (m *ShiftManager) alreadyOpen(ctx context.Context, worker StaffID, cause error) error {
	var structured *ShiftAlreadyOpenError
	if errors.As(cause, &structured) && structured.ShiftID != "" {
		return structured
	}
	out := &ShiftAlreadyOpenError{WorkerID: worker}
	if existing, err := m.store.FindOpenShift(ctx, worker); err == nil {
		out.ShiftID = existing.ID
	}
	return out
}

// =============================================================================
// READS
// =============================================================================

// GetShift returns a shift by id.
func (m *ShiftManager) GetShift(ctx context.Context, id ShiftID) (Shift, error) {
	return m.store.GetShift(ctx, id)
}

// CurrentShift returns the worker's open shift, or ErrShiftNotFound.
func (m *ShiftManager) CurrentShift(ctx context.Context, worker StaffID) (Shift, error) {
	return m.store.FindOpenShift(ctx, worker)
}

// ListShifts returns shifts matching f.
func (m *ShiftManager) ListShifts(ctx context.Context, f ShiftFilter) ([]Shift, error) {
	return m.store.ListShifts(ctx, f)
}

// Summary recomputes the ledger position of a shift.
func (m *ShiftManager) Summary(ctx context.Context, id ShiftID) (ShiftSummary, error) {
	shift, err := m.store.GetShift(ctx, id)
	if err != nil {
		return ShiftSummary{}, err
	}
	return summarize(ctx, m.store, shift, m.drawer)
}

func summarize(ctx context.Context, s Store, shift Shift, drawer []Channel) (ShiftSummary, error) {
	entries, err := s.ListEntries(ctx, EntryFilter{
		ShiftID:  shift.ID,
		Channels: drawer,
		Statuses: []EntryStatus{EntryConfirmed},
	})
	if err != nil {
		return ShiftSummary{}, fmt.Errorf("summarize shift %s: %w", shift.ID, err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Direction {
		case Income:
			income = income.Add(e.Amount)
		case Expense:
			expense = expense.Add(e.Amount)
		}
	}

	return ShiftSummary{
		ShiftID:      shift.ID,
		OpeningCash:  shift.OpeningCash,
		NetIncome:    income,
		NetExpense:   expense,
		ExpectedCash: shift.OpeningCash.Add(income).Sub(expense),
	}, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// CloseShift closes an open shift and hands the counted cash to the
// recipient, atomically.
func (m *ShiftManager) CloseShift(ctx context.Context, req CloseRequest) (CloseResult, error) {
	if req.CountedCash.IsNegative() {
		return CloseResult{}, &AmountError{Field: "counted_cash", Value: req.CountedCash.String(), Rule: ">= 0"}
	}
	recipient, err := m.resolveRecipient(ctx, req.Recipient)
	if err != nil {
		return CloseResult{}, err
	}

	current, err := m.store.GetShift(ctx, req.ShiftID)
	if err != nil {
		return CloseResult{}, err
	}
	actor := req.ActorID
	if actor == "" {
		actor = current.WorkerID
	}
	if actor != current.WorkerID {
		if _, err := m.requireManager(ctx, actor); err != nil {
			return CloseResult{}, err
		}
	}

	now := m.now()
	var result CloseResult
	err = m.store.WithTx(ctx, func(tx Store) error {
		shift, err := tx.GetShift(ctx, req.ShiftID)
		if err != nil {
			return err
		}
		if !shift.IsOpen() {
			return ErrShiftNotOpen
		}

		summary, err := summarize(ctx, tx, shift, m.drawer)
		if err != nil {
			return err
		}

		closedAt := now
		shift.Status = ShiftClosed
		shift.ClosedAt = &closedAt
		shift.ExpectedCash = summary.ExpectedCash
		shift.CountedCash = req.CountedCash
		shift.ClosingCash = req.CountedCash
		shift.Difference = req.CountedCash.Sub(summary.ExpectedCash)
		if err := tx.CloseShift(ctx, shift); err != nil {
			return err
		}

		h, err := m.handovers.createAtClose(ctx, tx, shift, recipient, req.CountedCash, req.Note, actor, now)
		if err != nil {
			return err
		}

		// Reload to pick up the closing note lines written above.
		closed, err := tx.GetShift(ctx, shift.ID)
		if err != nil {
			return err
		}
		result = CloseResult{Shift: closed, Handover: h}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	m.log.Info("shift closed",
		"shift_id", result.Shift.ID,
		"worker_id", result.Shift.WorkerID,
		"expected_cash", result.Shift.ExpectedCash.StringFixed(2),
		"counted_cash", result.Shift.CountedCash.StringFixed(2),
		"difference", result.Shift.Difference.StringFixed(2),
		"handover_id", result.Handover.ID,
		"handover_status", result.Handover.Status)

	return result, nil
}

// resolveRecipient checks that exactly one recipient is named and that it
// exists (and is a manager when addressed as one).
func (m *ShiftManager) resolveRecipient(ctx context.Context, r Recipient) (recipientRef, error) {
	switch {
	case r.ManagerID != "" && r.NextWorkerID != "":
		return recipientRef{}, ErrRecipientRequired
	case r.ManagerID != "":
		s, err := m.lookupRecipient(ctx, r.ManagerID)
		if err != nil {
			return recipientRef{}, err
		}
		if !s.IsManager() {
			return recipientRef{}, &RecipientError{ID: s.ID, Err: ErrRecipientNotManager}
		}
		return recipientRef{staff: s, manager: true}, nil
	case r.NextWorkerID != "":
		s, err := m.lookupRecipient(ctx, r.NextWorkerID)
		if err != nil {
			return recipientRef{}, err
		}
		return recipientRef{staff: s}, nil
	default:
		return recipientRef{}, ErrRecipientRequired
	}
}

type recipientRef struct {
	staff   Staff
	manager bool
}
