package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/frontdesk/cashdesk"
	"github.com/warp/frontdesk/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var openedAt = time.Date(2025, time.March, 10, 8, 15, 30, 123456789, time.UTC)

func openShift(id cashdesk.ShiftID, worker cashdesk.StaffID) cashdesk.Shift {
	return cashdesk.Shift{
		ID:          id,
		WorkerID:    worker,
		ShiftDate:   cashdesk.Day(openedAt),
		Status:      cashdesk.ShiftOpen,
		OpeningCash: decimal.Zero,
		OpenedAt:    openedAt,
	}
}

func pendingHandover(id cashdesk.HandoverID, from cashdesk.ShiftID, to cashdesk.StaffID, amount string) cashdesk.Handover {
	return cashdesk.Handover{
		ID:          id,
		FromShiftID: from,
		Amount:      decimal.RequireFromString(amount),
		TxDate:      openedAt,
		CreatedBy:   "w1",
		CreatedAt:   openedAt,
		ToStaffID:   to,
		Status:      cashdesk.HandoverPending,
	}
}

// =============================================================================
// SCHEMA
// =============================================================================

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Ping(ctx))
}

func TestNew_FileDatabase_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontdesk.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "m1", Name: "Marta", Role: cashdesk.RoleManager, Active: true}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	s, err := reopened.LookupStaff(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Marta", s.Name)
	assert.True(t, s.IsManager())
}

// =============================================================================
// SHIFTS
// =============================================================================

func TestInsertOpenShift_PartialUniqueIndex(t *testing.T) {
	// GIVEN: Worker w1 has an open shift
	// WHEN: A second open shift is inserted for w1
	// THEN: The insert fails with ShiftAlreadyOpen; once the first closes,
	//   a new open shift is accepted

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	err := store.InsertOpenShift(ctx, openShift("s2", "w1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cashdesk.ErrShiftAlreadyOpen)

	require.NoError(t, store.InsertOpenShift(ctx, openShift("s3", "w2")), "other workers are unaffected")

	closedAt := openedAt.Add(8 * time.Hour)
	s1 := openShift("s1", "w1")
	s1.ClosedAt = &closedAt
	require.NoError(t, store.CloseShift(ctx, s1))

	require.NoError(t, store.InsertOpenShift(ctx, openShift("s2", "w1")))

	shifts, err := store.ListShifts(ctx, cashdesk.ShiftFilter{WorkerID: "w1"})
	require.NoError(t, err)
	assert.Len(t, shifts, 2)
}

func TestInsertOpenShift_DuplicateID_NotAConflict(t *testing.T) {
	// A primary key clash is a different failure from a second open shift.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))
	err := store.InsertOpenShift(ctx, openShift("s1", "w2"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, cashdesk.ErrShiftAlreadyOpen))
}

func TestShift_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sh := openShift("s1", "w1")
	sh.OpeningNote = "morning"
	require.NoError(t, store.InsertOpenShift(ctx, sh))
	require.NoError(t, store.AddOpeningCash(ctx, "s1", decimal.RequireFromString("0.10")))
	require.NoError(t, store.AddOpeningCash(ctx, "s1", decimal.RequireFromString("0.20")))

	got, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cashdesk.ShiftOpen, got.Status)
	assert.True(t, got.OpeningCash.Equal(decimal.RequireFromString("0.30")), "decimal amounts must not drift: %s", got.OpeningCash)
	assert.True(t, got.OpenedAt.Equal(openedAt), "nanoseconds survive: %s", got.OpenedAt)
	assert.True(t, got.ShiftDate.Equal(cashdesk.NewDay(2025, time.March, 10)))
	assert.Equal(t, "morning", got.OpeningNote)
	assert.Nil(t, got.ClosedAt)

	open, err := store.FindOpenShift(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, cashdesk.ShiftID("s1"), open.ID)

	_, err = store.FindOpenShift(ctx, "w2")
	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)

	_, err = store.GetShift(ctx, "missing")
	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)
}

func TestCloseShift_Conditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	closedAt := openedAt.Add(time.Hour)
	sh := openShift("s1", "w1")
	sh.ClosedAt = &closedAt
	sh.ExpectedCash = decimal.RequireFromString("550")
	sh.CountedCash = decimal.RequireFromString("540")
	sh.ClosingCash = decimal.RequireFromString("540")
	sh.Difference = decimal.RequireFromString("-10")

	require.NoError(t, store.CloseShift(ctx, sh))
	assert.ErrorIs(t, store.CloseShift(ctx, sh), cashdesk.ErrShiftNotOpen)

	missing := openShift("nope", "w1")
	assert.ErrorIs(t, store.CloseShift(ctx, missing), cashdesk.ErrShiftNotFound)

	got, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cashdesk.ShiftClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(closedAt))
	assert.True(t, got.Difference.Equal(decimal.RequireFromString("-10")))

	assert.ErrorIs(t, store.AddOpeningCash(ctx, "s1", decimal.NewFromInt(1)), cashdesk.ErrShiftNotOpen)
}

func TestAppendClosingNote(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	require.NoError(t, store.AppendClosingNote(ctx, "s1", "first"))
	require.NoError(t, store.AppendClosingNote(ctx, "s1", "second"))
	assert.ErrorIs(t, store.AppendClosingNote(ctx, "missing", "x"), cashdesk.ErrShiftNotFound)

	got, err := store.GetShift(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got.ClosingNote)
}

func TestListShifts_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))
	other := openShift("s2", "w2")
	other.ShiftDate = cashdesk.NewDay(2025, time.March, 11)
	other.OpenedAt = openedAt.Add(24 * time.Hour)
	require.NoError(t, store.InsertOpenShift(ctx, other))

	day := cashdesk.NewDay(2025, time.March, 11)
	byDay, err := store.ListShifts(ctx, cashdesk.ShiftFilter{Day: &day})
	require.NoError(t, err)
	require.Len(t, byDay, 1)
	assert.Equal(t, cashdesk.ShiftID("s2"), byDay[0].ID)

	all, err := store.ListShifts(ctx, cashdesk.ShiftFilter{Status: cashdesk.ShiftOpen})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, cashdesk.ShiftID("s1"), all[0].ID, "ordered by opened_at")
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func TestEntries_SettleOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	e := cashdesk.LedgerEntry{
		ID:        "e1",
		TxDate:    openedAt,
		Direction: cashdesk.Income,
		Amount:    decimal.RequireFromString("12.34"),
		Channel:   cashdesk.ChannelCash,
		Status:    cashdesk.EntryPending,
		Source:    cashdesk.SourceManual,
		ShiftID:   "s1",
		CreatedBy: "w1",
		CreatedAt: openedAt,
	}
	require.NoError(t, store.AppendEntry(ctx, e))

	at := openedAt.Add(time.Minute)
	require.NoError(t, store.SettleEntry(ctx, "e1", cashdesk.EntryConfirmed, "m1", at))
	assert.ErrorIs(t, store.SettleEntry(ctx, "e1", cashdesk.EntryRejected, "m1", at), cashdesk.ErrEntryAlreadySettled)
	assert.ErrorIs(t, store.SettleEntry(ctx, "missing", cashdesk.EntryRejected, "m1", at), cashdesk.ErrEntryNotFound)

	got, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, cashdesk.EntryConfirmed, got.Status)
	assert.Equal(t, cashdesk.StaffID("m1"), got.ConfirmedBy)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(at))
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.34")))

	_, err = store.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, cashdesk.ErrEntryNotFound)
}

func TestEntries_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	add := func(id cashdesk.EntryID, ch cashdesk.Channel, status cashdesk.EntryStatus, shift cashdesk.ShiftID, at time.Time) {
		require.NoError(t, store.AppendEntry(ctx, cashdesk.LedgerEntry{
			ID: id, TxDate: at, Direction: cashdesk.Income, Amount: decimal.NewFromInt(1),
			Channel: ch, Status: status, Source: cashdesk.SourceManual, ShiftID: shift,
			CreatedBy: "w1", CreatedAt: at,
		}))
	}
	add("e1", cashdesk.ChannelCash, cashdesk.EntryConfirmed, "s1", openedAt)
	add("e2", cashdesk.ChannelCard, cashdesk.EntryPending, "s1", openedAt.Add(time.Hour))
	add("e3", cashdesk.ChannelBank, cashdesk.EntryConfirmed, "", openedAt.Add(48*time.Hour))

	byShift, err := store.ListEntries(ctx, cashdesk.EntryFilter{ShiftID: "s1"})
	require.NoError(t, err)
	assert.Len(t, byShift, 2)

	cashOnly, err := store.ListEntries(ctx, cashdesk.EntryFilter{Channels: []cashdesk.Channel{cashdesk.ChannelCash}})
	require.NoError(t, err)
	require.Len(t, cashOnly, 1)
	assert.Equal(t, cashdesk.EntryID("e1"), cashOnly[0].ID)

	confirmed, err := store.ListEntries(ctx, cashdesk.EntryFilter{Statuses: []cashdesk.EntryStatus{cashdesk.EntryConfirmed}})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	from, to := cashdesk.DayBounds(openedAt)
	sameDay, err := store.ListEntries(ctx, cashdesk.EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, sameDay, 2)

	outside, err := store.ListEntries(ctx, cashdesk.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, outside, 3)
	assert.Empty(t, outside[2].ShiftID)
}

// =============================================================================
// HANDOVERS
// =============================================================================

func TestHandover_ResolveOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s2", "w2")))

	require.NoError(t, store.InsertHandover(ctx, pendingHandover("h1", "s1", "w2", "300")))

	pending, err := store.ListHandovers(ctx, cashdesk.HandoverFilter{
		ToStaffID: "w2",
		Statuses:  []cashdesk.HandoverStatus{cashdesk.HandoverPending},
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsPending())
	assert.Nil(t, pending[0].ReceivedAt)

	at := openedAt.Add(time.Hour)
	resolved := pending[0]
	resolved.ToShiftID = "s2"
	resolved.Status = cashdesk.HandoverReceivedByStaff
	resolved.ReceivedBy = "w2"
	resolved.ReceivedAt = &at
	require.NoError(t, store.ResolveHandover(ctx, resolved))
	assert.ErrorIs(t, store.ResolveHandover(ctx, resolved), cashdesk.ErrHandoverAlreadyResolved)

	missing := resolved
	missing.ID = "nope"
	assert.ErrorIs(t, store.ResolveHandover(ctx, missing), cashdesk.ErrHandoverNotFound)

	got, err := store.GetHandover(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, cashdesk.HandoverReceivedByStaff, got.Status)
	assert.Equal(t, cashdesk.ShiftID("s2"), got.ToShiftID)
	require.NotNil(t, got.ReceivedAt)
	assert.True(t, got.ReceivedAt.Equal(at))

	from, to := cashdesk.DayBounds(at)
	received, err := store.ListHandovers(ctx, cashdesk.HandoverFilter{
		ToStaffID:    "w2",
		Statuses:     []cashdesk.HandoverStatus{cashdesk.HandoverReceivedByStaff},
		ReceivedFrom: &from,
		ReceivedTo:   &to,
	})
	require.NoError(t, err)
	assert.Len(t, received, 1)

	intoS2, err := store.ListHandovers(ctx, cashdesk.HandoverFilter{ToShiftIDs: []cashdesk.ShiftID{"s2"}})
	require.NoError(t, err)
	assert.Len(t, intoS2, 1)

	_, err = store.GetHandover(ctx, "missing")
	assert.ErrorIs(t, err, cashdesk.ErrHandoverNotFound)
}

func TestHandover_ExactlyOneRecipient(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	both := pendingHandover("h1", "s1", "w2", "1")
	both.ToManagerID = "m1"
	assert.Error(t, store.InsertHandover(ctx, both))

	neither := pendingHandover("h2", "s1", "", "1")
	assert.Error(t, store.InsertHandover(ctx, neither))
}

func TestHandover_UnknownOriginShift(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.InsertHandover(ctx, pendingHandover("h1", "missing", "w2", "1"))
	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)
}

func TestListHandovers_CreatedTo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	old := pendingHandover("h-old", "s1", "w2", "1")
	fresh := pendingHandover("h-new", "s1", "w2", "1")
	fresh.CreatedAt = openedAt.Add(48 * time.Hour)
	require.NoError(t, store.InsertHandover(ctx, old))
	require.NoError(t, store.InsertHandover(ctx, fresh))

	cutoff := openedAt.Add(24 * time.Hour)
	stale, err := store.ListHandovers(ctx, cashdesk.HandoverFilter{CreatedTo: &cutoff})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, cashdesk.HandoverID("h-old"), stale[0].ID)

	none, err := store.ListHandovers(ctx, cashdesk.HandoverFilter{FromShiftIDs: []cashdesk.ShiftID{"other"}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx cashdesk.Store) error {
		if err := tx.InsertOpenShift(ctx, openShift("s1", "w1")); err != nil {
			return err
		}
		if err := tx.AppendClosingNote(ctx, "s1", "inside"); err != nil {
			return err
		}
		got, err := tx.GetShift(ctx, "s1")
		if err != nil {
			return err
		}
		assert.Equal(t, "inside", got.ClosingNote, "tx sees its own writes")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetShift(ctx, "s1")
	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")), "nothing from the rolled back tx remains")
}

func TestWithTx_Commit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx cashdesk.Store) error {
		return tx.InsertOpenShift(ctx, openShift("s1", "w1"))
	})
	require.NoError(t, err)

	_, err = store.GetShift(ctx, "s1")
	assert.NoError(t, err)
}

// =============================================================================
// STAFF
// =============================================================================

func TestStaff_UpsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "w1", Name: "Bruno", Role: cashdesk.RoleStaff, Active: true}))
	require.NoError(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "m1", Name: "Ana", Role: cashdesk.RoleManager, Active: true}))
	require.NoError(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "w1", Name: "Bruno", Role: cashdesk.RoleStaff, Active: false}))

	w1, err := store.LookupStaff(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, w1.Active)

	_, err = store.LookupStaff(ctx, "ghost")
	assert.ErrorIs(t, err, cashdesk.ErrStaffNotFound)

	all, err := store.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana", all[0].Name, "ordered by name")

	assert.Error(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "x", Name: "X", Role: "owner"}), "role is constrained")
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveStaff(ctx, cashdesk.Staff{ID: "w1", Name: "W", Role: cashdesk.RoleStaff, Active: true}))
	require.NoError(t, store.InsertOpenShift(ctx, openShift("s1", "w1")))

	require.NoError(t, store.Reset(ctx))

	staff, err := store.ListStaff(ctx)
	require.NoError(t, err)
	assert.Empty(t, staff)
	_, err = store.GetShift(ctx, "s1")
	assert.ErrorIs(t, err, cashdesk.ErrShiftNotFound)
}
