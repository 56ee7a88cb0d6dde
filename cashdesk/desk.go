package cashdesk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DESK - Wires the engine components over one backend
// =============================================================================

// Config tunes a Desk. Zero values get defaults.
type Config struct {
	// DrawerChannels are counted into a shift's expected cash.
	// Defaults to cash only: card and mobile never sit in the physical drawer.
	DrawerChannels []Channel

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Desk bundles the engine components. All of them share the same backend,
// clock and logger.
type Desk struct {
	Shifts    *ShiftManager
	Handovers *HandoverReconciler
	Ledger    *EntryRecorder
	Wallet    *WalletAggregator
	Daily     *DailySummaryCalculator
}

// NewDesk creates the engine over b.
func NewDesk(b Backend, cfg Config) *Desk {
	d := deps{
		store: b,
		dir:   b,
		now:   cfg.Now,
		newID: cfg.NewID,
		log:   cfg.Logger,
	}
	if d.now == nil {
		d.now = func() time.Time { return time.Now().UTC() }
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.log == nil {
		d.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	drawer := cfg.DrawerChannels
	if len(drawer) == 0 {
		drawer = []Channel{ChannelCash}
	}

	handovers := &HandoverReconciler{deps: d}
	return &Desk{
		Shifts:    &ShiftManager{deps: d, handovers: handovers, drawer: drawer},
		Handovers: handovers,
		Ledger:    &EntryRecorder{deps: d},
		Wallet:    &WalletAggregator{deps: d},
		Daily:     &DailySummaryCalculator{deps: d},
	}
}

type deps struct {
	store TxStore
	dir   Directory
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// requireManager looks up id and fails with ErrForbidden unless it is an
// active manager.
func (d deps) requireManager(ctx context.Context, id StaffID) (Staff, error) {
	s, err := d.dir.LookupStaff(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	if !s.Active || !s.IsManager() {
		return Staff{}, ErrForbidden
	}
	return s, nil
}

// lookupRecipient resolves a handover recipient. Unknown and inactive staff
// are both ErrRecipientNotFound; other lookup failures pass through.
func (d deps) lookupRecipient(ctx context.Context, id StaffID) (Staff, error) {
	s, err := d.dir.LookupStaff(ctx, id)
	if errors.Is(err, ErrStaffNotFound) || (err == nil && !s.Active) {
		return Staff{}, &RecipientError{ID: id, Err: ErrRecipientNotFound}
	}
	if err != nil {
		return Staff{}, err
	}
	return s, nil
}

// actorName returns a display name for audit lines, falling back to the id.
func (d deps) actorName(ctx context.Context, id StaffID) string {
	s, err := d.dir.LookupStaff(ctx, id)
	if err != nil || s.Name == "" {
		return string(id)
	}
	return s.Name
}
