/*
desk_test.go - End-to-end behaviour of the cash desk engine

PURPOSE:
  Drives the engine through its public components (Desk.Shifts,
  Desk.Handovers, Desk.Ledger, Desk.Wallet, Desk.Daily) against every
  Backend implementation. A test that passes on the memory store but not on
  SQLite (or the other way round) is a store bug.

ORGANIZATION:
  desk_test.go     - fixture, helpers, the two reference workflows
  shift_test.go    - open/close lifecycle and validation
  handover_test.go - claim, manual confirm, handover invariants
  ledger_test.go   - entry recording, settlement, wallet balances
  daily_test.go    - received/delivered per worker and day
*/
package cashdesk_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/frontdesk/cashdesk"
	"github.com/warp/frontdesk/cashdesk/store"
	"github.com/warp/frontdesk/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type backend interface {
	cashdesk.Backend
	SaveStaff(ctx context.Context, s cashdesk.Staff) error
}

var backends = []struct {
	name string
	open func(t *testing.T) backend
}{
	{"memory", func(t *testing.T) backend { return store.NewMemory() }},
	{"sqlite", func(t *testing.T) backend {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// clock is a settable time source shared by the engine and the test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

const (
	workerA  cashdesk.StaffID = "worker-a"
	workerB  cashdesk.StaffID = "worker-b"
	workerC  cashdesk.StaffID = "worker-c"
	manager  cashdesk.StaffID = "mgr-m"
	inactive cashdesk.StaffID = "worker-gone"
)

var day1 = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store backend
	desk  *cashdesk.Desk
	clock *clock
}

func newFixture(t *testing.T, b backend) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: b,
		clock: &clock{t: day1},
	}
	f.desk = cashdesk.NewDesk(b, cashdesk.Config{Now: f.clock.Now})

	for _, s := range []cashdesk.Staff{
		{ID: workerA, Name: "Ana", Role: cashdesk.RoleStaff, Active: true},
		{ID: workerB, Name: "Bruno", Role: cashdesk.RoleStaff, Active: true},
		{ID: workerC, Name: "Carla", Role: cashdesk.RoleStaff, Active: true},
		{ID: manager, Name: "Marta", Role: cashdesk.RoleManager, Active: true},
		{ID: inactive, Name: "Gus", Role: cashdesk.RoleStaff, Active: false},
	} {
		require.NoError(t, b.SaveStaff(f.ctx, s))
	}
	return f
}

// forEachBackend runs fn once per Backend implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newFixture(t, b.open(t)))
		})
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func (f *fixture) open(t *testing.T, worker cashdesk.StaffID) cashdesk.OpenResult {
	t.Helper()
	res, err := f.desk.Shifts.OpenShift(f.ctx, cashdesk.OpenRequest{WorkerID: worker})
	require.NoError(t, err)
	return res
}

func (f *fixture) record(t *testing.T, shift cashdesk.Shift, dir cashdesk.Direction, amount string, ch cashdesk.Channel, confirmed bool) cashdesk.LedgerEntry {
	t.Helper()
	e, err := f.desk.Ledger.RecordEntry(f.ctx, cashdesk.RecordRequest{
		Direction: dir,
		Amount:    dec(amount),
		Channel:   ch,
		CreatedBy: shift.WorkerID,
		ShiftID:   shift.ID,
		Confirmed: confirmed,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) closeTo(t *testing.T, shift cashdesk.Shift, counted string, r cashdesk.Recipient) cashdesk.CloseResult {
	t.Helper()
	res, err := f.desk.Shifts.CloseShift(f.ctx, cashdesk.CloseRequest{
		ShiftID:     shift.ID,
		CountedCash: dec(counted),
		Recipient:   r,
	})
	require.NoError(t, err)
	return res
}

func toManager(id cashdesk.StaffID) cashdesk.Recipient { return cashdesk.Recipient{ManagerID: id} }
func toWorker(id cashdesk.StaffID) cashdesk.Recipient  { return cashdesk.Recipient{NextWorkerID: id} }

// allHandovers lists every handover created from any shift.
func (f *fixture) allHandovers(t *testing.T) []cashdesk.Handover {
	t.Helper()
	hs, err := f.store.ListHandovers(f.ctx, cashdesk.HandoverFilter{})
	require.NoError(t, err)
	return hs
}

// assertHandoverInvariants checks the recipient and resolution shape of
// every stored handover.
func assertHandoverInvariants(t *testing.T, f *fixture) {
	t.Helper()
	for _, h := range f.allHandovers(t) {
		assert.True(t, (h.ToManagerID == "") != (h.ToStaffID == ""),
			"handover %s must name exactly one recipient", h.ID)

		switch h.Status {
		case cashdesk.HandoverPending:
			assert.Empty(t, h.ToShiftID, "pending handover %s has a receiving shift", h.ID)
			assert.Nil(t, h.ReceivedAt)
			assert.Empty(t, h.ReceivedBy)
		case cashdesk.HandoverReceivedByManager:
			assert.Empty(t, h.ToShiftID, "manager-resolved handover %s has a receiving shift", h.ID)
			assert.NotNil(t, h.ReceivedAt)
			assert.NotEmpty(t, h.ReceivedBy)
		case cashdesk.HandoverReceivedByStaff:
			assert.NotEmpty(t, h.ToShiftID, "staff-resolved handover %s has no receiving shift", h.ID)
			assert.NotNil(t, h.ReceivedAt)
			assert.Equal(t, h.ToStaffID, h.ReceivedBy)
		default:
			t.Errorf("handover %s has unknown status %q", h.ID, h.Status)
		}
	}
}

// =============================================================================
// REFERENCE WORKFLOWS
// =============================================================================

func TestWorkflow_CloseToManager(t *testing.T) {
	// GIVEN: Worker A opens a shift with nothing pending
	//   Confirmed cash income 200 + 300 + 50, pending cash expense 20
	// WHEN: A closes with 540 counted, handing to manager M
	// THEN: Expected 550 (pending excluded), difference -10,
	//   handover of 540 resolved to the manager at once

	forEachBackend(t, func(t *testing.T, f *fixture) {
		opened := f.open(t, workerA)
		shift := opened.Shift
		assertAmount(t, "0", shift.OpeningCash)
		assertAmount(t, "0", opened.Claimed.Amount)
		assert.Empty(t, opened.Claimed.Handovers)

		f.record(t, shift, cashdesk.Income, "200", cashdesk.ChannelCash, true)
		f.record(t, shift, cashdesk.Income, "300", cashdesk.ChannelCash, true)
		f.record(t, shift, cashdesk.Income, "50", cashdesk.ChannelCash, true)
		f.record(t, shift, cashdesk.Expense, "20", cashdesk.ChannelCash, false)

		summary, err := f.desk.Shifts.Summary(f.ctx, shift.ID)
		require.NoError(t, err)
		assertAmount(t, "550", summary.ExpectedCash)
		assertAmount(t, "550", summary.NetIncome)
		assertAmount(t, "0", summary.NetExpense)

		f.clock.Advance(8 * time.Hour)
		closed := f.closeTo(t, shift, "540", toManager(manager))

		assert.Equal(t, cashdesk.ShiftClosed, closed.Shift.Status)
		require.NotNil(t, closed.Shift.ClosedAt)
		assertAmount(t, "550", closed.Shift.ExpectedCash)
		assertAmount(t, "540", closed.Shift.CountedCash)
		assertAmount(t, "540", closed.Shift.ClosingCash)
		assertAmount(t, "-10", closed.Shift.Difference)
		assert.Contains(t, closed.Shift.ClosingNote, "Marta received 540.00 (manager)")

		h := closed.Handover
		assertAmount(t, "540", h.Amount)
		assert.Equal(t, cashdesk.HandoverReceivedByManager, h.Status)
		assert.Equal(t, manager, h.ToManagerID)
		assert.Empty(t, h.ToStaffID)
		assert.Empty(t, h.ToShiftID)
		assert.Equal(t, manager, h.ReceivedBy)
		require.NotNil(t, h.ReceivedAt)
		assert.True(t, h.ReceivedAt.Equal(f.clock.Now()))

		stored, err := f.desk.Handovers.Get(f.ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, cashdesk.HandoverReceivedByManager, stored.Status)

		assertHandoverInvariants(t, f)
	})
}

func TestWorkflow_CloseToNextWorker_ClaimedOnOpen(t *testing.T) {
	// GIVEN: Worker A closes designating next worker B (B has no open shift)
	// WHEN: B opens a shift later
	// THEN: The handover stays pending until then, and B's opening cash is 300

	forEachBackend(t, func(t *testing.T, f *fixture) {
		shiftA := f.open(t, workerA).Shift
		f.record(t, shiftA, cashdesk.Income, "300", cashdesk.ChannelCash, true)

		closed := f.closeTo(t, shiftA, "300", toWorker(workerB))
		h := closed.Handover
		assert.Equal(t, cashdesk.HandoverPending, h.Status)
		assert.Empty(t, h.ToShiftID)
		assert.Equal(t, workerB, h.ToStaffID)
		assert.Contains(t, closed.Shift.ClosingNote, "300.00 handed over to Bruno")

		pending, err := f.desk.Handovers.PendingFor(f.ctx, workerB)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, h.ID, pending[0].ID)

		f.clock.Advance(time.Hour)
		opened := f.open(t, workerB)
		assertAmount(t, "300", opened.Shift.OpeningCash)
		assertAmount(t, "300", opened.Claimed.Amount)
		require.Len(t, opened.Claimed.Handovers, 1)
		assert.Equal(t, h.ID, opened.Claimed.Handovers[0].ID)

		claimed, err := f.desk.Handovers.Get(f.ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, cashdesk.HandoverReceivedByStaff, claimed.Status)
		assert.Equal(t, opened.Shift.ID, claimed.ToShiftID)
		assert.Equal(t, workerB, claimed.ReceivedBy)

		storedB, err := f.desk.Shifts.GetShift(f.ctx, opened.Shift.ID)
		require.NoError(t, err)
		assertAmount(t, "300", storedB.OpeningCash)

		// The audit line lands on the origin shift, not the receiving one.
		storedA, err := f.desk.Shifts.GetShift(f.ctx, shiftA.ID)
		require.NoError(t, err)
		assert.Contains(t, storedA.ClosingNote, "Bruno received 300.00")
		assert.Empty(t, storedB.ClosingNote)

		pending, err = f.desk.Handovers.PendingFor(f.ctx, workerB)
		require.NoError(t, err)
		assert.Empty(t, pending)

		summary, err := f.desk.Shifts.Summary(f.ctx, opened.Shift.ID)
		require.NoError(t, err)
		assertAmount(t, "300", summary.ExpectedCash)

		assertHandoverInvariants(t, f)
	})
}

func TestWorkflow_CashIsConserved(t *testing.T) {
	// GIVEN: A -> B -> C -> manager, each shift adding its own takings
	// WHEN: Every handover has been resolved
	// THEN: What the manager receives equals all confirmed drawer income
	//   minus all confirmed drawer expense, less the counting differences

	forEachBackend(t, func(t *testing.T, f *fixture) {
		a := f.open(t, workerA).Shift
		f.record(t, a, cashdesk.Income, "100", cashdesk.ChannelCash, true)
		f.closeTo(t, a, "100", toWorker(workerB))

		b := f.open(t, workerB).Shift
		f.record(t, b, cashdesk.Income, "80", cashdesk.ChannelCash, true)
		f.record(t, b, cashdesk.Expense, "30", cashdesk.ChannelCash, true)
		f.record(t, b, cashdesk.Income, "999", cashdesk.ChannelCard, true)
		closedB := f.closeTo(t, b, "145", toWorker(workerC))
		assertAmount(t, "150", closedB.Shift.ExpectedCash)
		assertAmount(t, "-5", closedB.Shift.Difference)

		c := f.open(t, workerC)
		assertAmount(t, "145", c.Shift.OpeningCash)
		f.record(t, c.Shift, cashdesk.Income, "55", cashdesk.ChannelCash, true)
		closedC := f.closeTo(t, c.Shift, "200", toManager(manager))
		assertAmount(t, "200", closedC.Shift.ExpectedCash)
		assertAmount(t, "0", closedC.Shift.Difference)

		// 100 + 80 - 30 + 55 = 205, short by 5 at B's close.
		assertAmount(t, "200", closedC.Handover.Amount)

		for _, h := range f.allHandovers(t) {
			assert.NotEqual(t, cashdesk.HandoverPending, h.Status)
		}
		assertHandoverInvariants(t, f)
	})
}

func TestNewDesk_ReadComponentsUseBackend(t *testing.T) {
	// GIVEN: A desk over a backend whose list reads fail
	// THEN: Wallet and Daily surface the failure, so both read the
	//   backend the desk was built with

	forEachBackend(t, func(t *testing.T, f *fixture) {
		desk := cashdesk.NewDesk(busyReads{f.store}, cashdesk.Config{Now: f.clock.Now})

		_, err := desk.Wallet.ComputeBalances(f.ctx, cashdesk.BalanceFilter{})
		assert.ErrorIs(t, err, cashdesk.ErrStoreBusy)

		_, err = desk.Daily.SummaryFor(f.ctx, workerA, day1)
		assert.ErrorIs(t, err, cashdesk.ErrStoreBusy)
	})
}

// busyReads fails entry and shift listings as a transient store error.
type busyReads struct {
	backend
}

func (busyReads) ListEntries(context.Context, cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	return nil, cashdesk.ErrStoreBusy
}

func (busyReads) ListShifts(context.Context, cashdesk.ShiftFilter) ([]cashdesk.Shift, error) {
	return nil, cashdesk.ErrStoreBusy
}
