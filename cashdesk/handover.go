/*
handover.go - Handover creation, claim and manager receipt

PURPOSE:
  A closing shift hands its counted cash to exactly one recipient. This file
  creates those handovers and resolves them.

RESOLUTION PATHS (each handover is resolved exactly once):
  1. Addressed to a manager: resolved at creation.
       status=received_by_manager, received_by=manager, to_shift_id stays empty
  2. Addressed to a worker: pending until that worker opens a shift, which
     claims it.
       status=received_by_staff, received_by=worker, to_shift_id=new shift
  3. Manual confirm: a manager takes a still-pending handover directly and a
     compensating cash expense is written outside any shift.

AUDIT TRAIL:
  Every event appends one line to the ORIGIN shift's closing note, never to
  the receiving shift.

SEE ALSO:
  - shift.go: OpenShift calls claimPending, CloseShift calls createAtClose
*/
package cashdesk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const auditTimeLayout = "2006-01-02 15:04"

// HandoverReconciler creates and resolves handovers.
type HandoverReconciler struct {
	deps
}

// =============================================================================
// CREATION
// =============================================================================

// CreateAndResolveForManager hands a closed shift's cash straight to a
// manager, resolved immediately. A shift hands over exactly once: an open
// shift is ErrShiftNotOpen, and a shift that already has a handover is
// ErrHandoverAlreadyResolved. CloseShift with a manager recipient takes the
// same path inside the close transaction.
func (r *HandoverReconciler) CreateAndResolveForManager(ctx context.Context, from ShiftID, manager StaffID, amount decimal.Decimal, note string) (Handover, error) {
	if amount.IsNegative() {
		return Handover{}, &AmountError{Field: "amount", Value: amount.String(), Rule: ">= 0"}
	}
	mgr, err := r.lookupRecipient(ctx, manager)
	if err != nil {
		return Handover{}, err
	}
	if !mgr.IsManager() {
		return Handover{}, &RecipientError{ID: manager, Err: ErrRecipientNotManager}
	}

	now := r.now()
	var out Handover
	err = r.store.WithTx(ctx, func(tx Store) error {
		shift, err := tx.GetShift(ctx, from)
		if err != nil {
			return err
		}
		out, err = r.createAtClose(ctx, tx, shift, recipientRef{staff: mgr, manager: true}, amount, note, shift.WorkerID, now)
		return err
	})
	if err != nil {
		return Handover{}, err
	}
	return out, nil
}

// createAtClose inserts the handover for a closed shift. Manager handovers
// are resolved in the same write. from must already be closed (CloseShift
// passes the shift it is closing) and must not have handed over before.
func (r *HandoverReconciler) createAtClose(ctx context.Context, tx Store, from Shift, to recipientRef, amount decimal.Decimal, note string, createdBy StaffID, now time.Time) (Handover, error) {
	if from.IsOpen() {
		return Handover{}, fmt.Errorf("%w: shift %s must be closed before it hands over", ErrShiftNotOpen, from.ID)
	}
	existing, err := tx.ListHandovers(ctx, HandoverFilter{FromShiftIDs: []ShiftID{from.ID}})
	if err != nil {
		return Handover{}, err
	}
	if len(existing) > 0 {
		return Handover{}, fmt.Errorf("%w: shift %s already handed over in %s", ErrHandoverAlreadyResolved, from.ID, existing[0].ID)
	}

	h := Handover{
		ID:          HandoverID(r.newID()),
		FromShiftID: from.ID,
		Amount:      amount,
		TxDate:      now,
		Note:        note,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		Status:      HandoverPending,
	}

	var line string
	if to.manager {
		receivedAt := now
		h.ToManagerID = to.staff.ID
		h.Status = HandoverReceivedByManager
		h.ReceivedBy = to.staff.ID
		h.ReceivedAt = &receivedAt
		line = fmt.Sprintf("[%s] %s received %s (manager)", now.Format(auditTimeLayout), displayName(to.staff), amount.StringFixed(2))
	} else {
		h.ToStaffID = to.staff.ID
		line = fmt.Sprintf("[%s] %s handed over to %s, awaiting their next shift", now.Format(auditTimeLayout), amount.StringFixed(2), displayName(to.staff))
	}

	if err := tx.InsertHandover(ctx, h); err != nil {
		return Handover{}, fmt.Errorf("create handover for shift %s: %w", from.ID, err)
	}
	if err := tx.AppendClosingNote(ctx, from.ID, line); err != nil {
		return Handover{}, err
	}

	r.log.Info("handover created",
		"handover_id", h.ID,
		"from_shift_id", h.FromShiftID,
		"amount", amount.StringFixed(2),
		"status", h.Status,
		"to_manager_id", h.ToManagerID,
		"to_staff_id", h.ToStaffID)
	return h, nil
}

// =============================================================================
// CLAIM
// =============================================================================

// ClaimPending claims every pending handover addressed to worker into the
// worker's open shift. OpenShift already does this; call it directly to
// pick up handovers created after the shift was opened.
func (r *HandoverReconciler) ClaimPending(ctx context.Context, worker StaffID, into ShiftID) (ClaimResult, error) {
	staff, err := r.dir.LookupStaff(ctx, worker)
	if err != nil {
		return ClaimResult{}, err
	}

	now := r.now()
	var out ClaimResult
	err = r.store.WithTx(ctx, func(tx Store) error {
		shift, err := tx.GetShift(ctx, into)
		if err != nil {
			return err
		}
		if !shift.IsOpen() || shift.WorkerID != staff.ID {
			return ErrShiftNotOpen
		}
		out, err = r.claimPending(ctx, tx, staff, shift, now)
		return err
	})
	if err != nil {
		return ClaimResult{}, err
	}
	return out, nil
}

// claimPending resolves the worker's pending handovers into shift and adds
// the total to its opening cash. No pending handovers is the common case and
// returns a zero result.
func (r *HandoverReconciler) claimPending(ctx context.Context, tx Store, worker Staff, shift Shift, now time.Time) (ClaimResult, error) {
	pending, err := tx.ListHandovers(ctx, HandoverFilter{
		ToStaffID: worker.ID,
		Statuses:  []HandoverStatus{HandoverPending},
	})
	if err != nil {
		return ClaimResult{}, fmt.Errorf("list pending handovers for %s: %w", worker.ID, err)
	}

	result := ClaimResult{Amount: decimal.Zero}
	for _, h := range pending {
		receivedAt := now
		h.ToShiftID = shift.ID
		h.Status = HandoverReceivedByStaff
		h.ReceivedBy = worker.ID
		h.ReceivedAt = &receivedAt
		if err := tx.ResolveHandover(ctx, h); err != nil {
			return ClaimResult{}, err
		}

		line := fmt.Sprintf("[%s] %s received %s", now.Format(auditTimeLayout), displayName(worker), h.Amount.StringFixed(2))
		if err := tx.AppendClosingNote(ctx, h.FromShiftID, line); err != nil {
			return ClaimResult{}, err
		}

		result.Amount = result.Amount.Add(h.Amount)
		result.Handovers = append(result.Handovers, h)
	}

	if result.Amount.IsPositive() {
		if err := tx.AddOpeningCash(ctx, shift.ID, result.Amount); err != nil {
			return ClaimResult{}, err
		}
	}

	for _, h := range result.Handovers {
		r.log.Info("handover claimed",
			"handover_id", h.ID,
			"from_shift_id", h.FromShiftID,
			"to_shift_id", h.ToShiftID,
			"amount", h.Amount.StringFixed(2))
	}
	return result, nil
}

// =============================================================================
// MANUAL CONFIRM
// =============================================================================

// ManualConfirm lets a manager take a pending handover directly. A confirmed
// cash expense of actualAmount is written outside any shift so the
// organization-wide cash ledger reflects the manager's receipt. A zero
// actualAmount resolves the handover without a ledger entry.
func (r *HandoverReconciler) ManualConfirm(ctx context.Context, id HandoverID, manager StaffID, actualAmount decimal.Decimal) (Handover, error) {
	if actualAmount.IsNegative() {
		return Handover{}, &AmountError{Field: "actual_amount", Value: actualAmount.String(), Rule: ">= 0"}
	}
	mgr, err := r.requireManager(ctx, manager)
	if err != nil {
		return Handover{}, err
	}

	current, err := r.store.GetHandover(ctx, id)
	if err != nil {
		return Handover{}, err
	}
	if !current.IsPending() {
		return Handover{}, ErrHandoverAlreadyResolved
	}
	origin, err := r.store.GetShift(ctx, current.FromShiftID)
	if err != nil {
		return Handover{}, err
	}
	from := r.actorName(ctx, origin.WorkerID)

	now := r.now()
	var out Handover
	err = r.store.WithTx(ctx, func(tx Store) error {
		h, err := tx.GetHandover(ctx, id)
		if err != nil {
			return err
		}
		if !h.IsPending() {
			return ErrHandoverAlreadyResolved
		}

		receivedAt := now
		h.Status = HandoverReceivedByManager
		h.ReceivedBy = mgr.ID
		h.ReceivedAt = &receivedAt
		if err := tx.ResolveHandover(ctx, h); err != nil {
			return err
		}

		if actualAmount.IsPositive() {
			confirmedAt := now
			entry := LedgerEntry{
				ID:          EntryID(r.newID()),
				TxDate:      now,
				Direction:   Expense,
				Amount:      actualAmount,
				Channel:     ChannelCash,
				Status:      EntryConfirmed,
				Source:      SourceTransfer,
				Description: fmt.Sprintf("drawer cash received by %s from %s (handover %s)", displayName(mgr), from, h.ID),
				CreatedBy:   mgr.ID,
				CreatedAt:   now,
				ConfirmedBy: mgr.ID,
				ConfirmedAt: &confirmedAt,
			}
			if err := tx.AppendEntry(ctx, entry); err != nil {
				return err
			}
		}

		line := fmt.Sprintf("[%s] %s confirmed receipt of %s (handover amount %s)",
			now.Format(auditTimeLayout), displayName(mgr), actualAmount.StringFixed(2), h.Amount.StringFixed(2))
		if err := tx.AppendClosingNote(ctx, h.FromShiftID, line); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return Handover{}, err
	}

	r.log.Info("handover confirmed by manager",
		"handover_id", out.ID,
		"manager_id", mgr.ID,
		"handover_amount", out.Amount.StringFixed(2),
		"actual_amount", actualAmount.StringFixed(2))
	return out, nil
}

// =============================================================================
// READS
// =============================================================================

// PendingFor lists handovers still waiting for worker to open a shift.
func (r *HandoverReconciler) PendingFor(ctx context.Context, worker StaffID) ([]Handover, error) {
	return r.store.ListHandovers(ctx, HandoverFilter{
		ToStaffID: worker,
		Statuses:  []HandoverStatus{HandoverPending},
	})
}

// ListPending lists every handover still waiting for its recipient.
func (r *HandoverReconciler) ListPending(ctx context.Context) ([]Handover, error) {
	return r.store.ListHandovers(ctx, HandoverFilter{
		Statuses: []HandoverStatus{HandoverPending},
	})
}

// Get returns a handover by id.
func (r *HandoverReconciler) Get(ctx context.Context, id HandoverID) (Handover, error) {
	return r.store.GetHandover(ctx, id)
}

func displayName(s Staff) string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.ID)
}
