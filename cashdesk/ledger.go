package cashdesk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER ENTRIES - Recording and settling money movements
// =============================================================================
// Entries are immutable once settled. The only mutation after insert is the
// single pending -> confirmed / rejected step, which requires a manager.

// RecordRequest describes a new ledger entry.
type RecordRequest struct {
	TxDate      time.Time // defaults to now
	Direction   Direction
	Amount      decimal.Decimal
	Channel     Channel
	Source      SourceType // defaults to manual
	Description string
	CreatedBy   StaffID

	// ShiftID attaches the entry to a shift, which must be open.
	ShiftID ShiftID
	// UseOpenShift attaches the entry to CreatedBy's open shift when ShiftID
	// is empty. Fails with ErrShiftNotOpen if there is none.
	UseOpenShift bool

	// Confirmed records the entry as already confirmed by CreatedBy.
	Confirmed bool
}

// EntryRecorder writes ledger entries.
type EntryRecorder struct {
	deps
}

// RecordEntry validates and appends an entry.
func (r *EntryRecorder) RecordEntry(ctx context.Context, req RecordRequest) (LedgerEntry, error) {
	if err := validateRecord(req); err != nil {
		return LedgerEntry{}, err
	}
	if _, err := r.dir.LookupStaff(ctx, req.CreatedBy); err != nil {
		return LedgerEntry{}, err
	}

	now := r.now()
	e := LedgerEntry{
		ID:          EntryID(r.newID()),
		TxDate:      req.TxDate,
		Direction:   req.Direction,
		Amount:      req.Amount,
		Channel:     req.Channel,
		Status:      EntryPending,
		Source:      req.Source,
		ShiftID:     req.ShiftID,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
	}
	if e.TxDate.IsZero() {
		e.TxDate = now
	}
	if e.Source == "" {
		e.Source = SourceManual
	}
	if req.Confirmed {
		confirmedAt := now
		e.Status = EntryConfirmed
		e.ConfirmedBy = req.CreatedBy
		e.ConfirmedAt = &confirmedAt
	}

	err := r.store.WithTx(ctx, func(tx Store) error {
		switch {
		case e.ShiftID != "":
			shift, err := tx.GetShift(ctx, e.ShiftID)
			if err != nil {
				return err
			}
			if !shift.IsOpen() {
				return ErrShiftNotOpen
			}
		case req.UseOpenShift:
			shift, err := tx.FindOpenShift(ctx, req.CreatedBy)
			if errors.Is(err, ErrShiftNotFound) {
				return ErrShiftNotOpen
			}
			if err != nil {
				return err
			}
			e.ShiftID = shift.ID
		}
		return tx.AppendEntry(ctx, e)
	})
	if err != nil {
		return LedgerEntry{}, err
	}

	r.log.Info("ledger entry recorded",
		"entry_id", e.ID,
		"direction", e.Direction,
		"amount", e.Amount.StringFixed(2),
		"channel", e.Channel,
		"status", e.Status,
		"shift_id", e.ShiftID)
	return e, nil
}

func validateRecord(req RecordRequest) error {
	if !req.Amount.IsPositive() {
		return &AmountError{Field: "amount", Value: req.Amount.String(), Rule: "> 0"}
	}
	if req.Direction != Income && req.Direction != Expense {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidEntry, req.Direction)
	}
	if !req.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidEntry, req.Channel)
	}
	switch req.Source {
	case "", SourceManual, SourceDomainEvent, SourceTransfer:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidEntry, req.Source)
	}
	if req.CreatedBy == "" {
		return fmt.Errorf("%w: created_by is required", ErrInvalidEntry)
	}
	return nil
}

// ConfirmEntry moves a pending entry to confirmed. Managers only.
func (r *EntryRecorder) ConfirmEntry(ctx context.Context, id EntryID, manager StaffID) (LedgerEntry, error) {
	return r.settle(ctx, id, manager, EntryConfirmed)
}

// RejectEntry moves a pending entry to rejected. Managers only.
func (r *EntryRecorder) RejectEntry(ctx context.Context, id EntryID, manager StaffID) (LedgerEntry, error) {
	return r.settle(ctx, id, manager, EntryRejected)
}

func (r *EntryRecorder) settle(ctx context.Context, id EntryID, manager StaffID, status EntryStatus) (LedgerEntry, error) {
	mgr, err := r.requireManager(ctx, manager)
	if err != nil {
		return LedgerEntry{}, err
	}

	now := r.now()
	var out LedgerEntry
	err = r.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SettleEntry(ctx, id, status, mgr.ID, now); err != nil {
			return err
		}
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return LedgerEntry{}, err
	}

	r.log.Info("ledger entry settled",
		"entry_id", out.ID,
		"status", out.Status,
		"manager_id", mgr.ID)
	return out, nil
}

// GetEntry returns an entry by id.
func (r *EntryRecorder) GetEntry(ctx context.Context, id EntryID) (LedgerEntry, error) {
	return r.store.GetEntry(ctx, id)
}

// EntriesForShift lists every entry attached to a shift, any status.
func (r *EntryRecorder) EntriesForShift(ctx context.Context, id ShiftID) ([]LedgerEntry, error) {
	if _, err := r.store.GetShift(ctx, id); err != nil {
		return nil, err
	}
	return r.store.ListEntries(ctx, EntryFilter{ShiftID: id})
}

// ListEntries returns entries matching f.
func (r *EntryRecorder) ListEntries(ctx context.Context, f EntryFilter) ([]LedgerEntry, error) {
	return r.store.ListEntries(ctx, f)
}
