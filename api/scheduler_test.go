package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/frontdesk/cashdesk"
	"github.com/warp/frontdesk/cashdesk/store"
)

func seedMonitorStore(t *testing.T, now *time.Time) (*store.Memory, *cashdesk.Desk) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	for _, s := range []cashdesk.Staff{
		{ID: "ana", Name: "Ana", Role: cashdesk.RoleStaff, Active: true},
		{ID: "bruno", Name: "Bruno", Role: cashdesk.RoleStaff, Active: true},
		{ID: "carla", Name: "Carla", Role: cashdesk.RoleStaff, Active: true},
	} {
		require.NoError(t, mem.SaveStaff(ctx, s))
	}
	desk := cashdesk.NewDesk(mem, cashdesk.Config{Now: func() time.Time { return *now }})
	return mem, desk
}

func TestHandoverMonitor_Check(t *testing.T) {
	// GIVEN: Ana closed to Bruno on day 1, Bruno never came back;
	//        Carla opened on day 1 and never closed
	// WHEN: The monitor checks 25 hours later
	// THEN: Both are reported; fresh activity is not

	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	mem, desk := seedMonitorStore(t, &now)
	ctx := context.Background()

	a, err := desk.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "ana"})
	require.NoError(t, err)
	_, err = desk.Shifts.CloseShift(ctx, cashdesk.CloseRequest{
		ShiftID:     a.Shift.ID,
		CountedCash: decimal.NewFromInt(120),
		Recipient:   cashdesk.Recipient{NextWorkerID: "bruno"},
	})
	require.NoError(t, err)

	c, err := desk.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "carla"})
	require.NoError(t, err)

	monitor := NewHandoverMonitor(mem, MonitorConfig{PendingAfter: 24 * time.Hour, OpenAfter: 16 * time.Hour}, nil)

	monitor.Now = func() time.Time { return now.Add(2 * time.Hour) }
	report, err := monitor.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.StaleHandovers)
	assert.Empty(t, report.LongOpenShifts)

	monitor.Now = func() time.Time { return now.Add(25 * time.Hour) }
	report, err = monitor.Check(ctx)
	require.NoError(t, err)
	require.Len(t, report.StaleHandovers, 1)
	assert.Equal(t, cashdesk.StaffID("bruno"), report.StaleHandovers[0].ToStaffID)
	require.Len(t, report.LongOpenShifts, 1)
	assert.Equal(t, c.Shift.ID, report.LongOpenShifts[0].ID)
	assert.Equal(t, now.Add(25*time.Hour), report.CheckedAt)
}

func TestHandoverMonitor_ResolvedNotReported(t *testing.T) {
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	mem, desk := seedMonitorStore(t, &now)
	ctx := context.Background()

	a, err := desk.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "ana"})
	require.NoError(t, err)
	_, err = desk.Shifts.CloseShift(ctx, cashdesk.CloseRequest{
		ShiftID:     a.Shift.ID,
		CountedCash: decimal.NewFromInt(80),
		Recipient:   cashdesk.Recipient{NextWorkerID: "bruno"},
	})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	b, err := desk.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "bruno"})
	require.NoError(t, err)
	require.Len(t, b.Claimed.Handovers, 1)

	monitor := NewHandoverMonitor(mem, MonitorConfig{}, nil)
	monitor.Now = func() time.Time { return now.Add(48 * time.Hour) }

	report, err := monitor.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.StaleHandovers)
	require.Len(t, report.LongOpenShifts, 1)
	assert.Equal(t, b.Shift.ID, report.LongOpenShifts[0].ID)
}

func TestHandoverMonitor_StartStop(t *testing.T) {
	now := time.Now().UTC()
	mem, _ := seedMonitorStore(t, &now)

	disabled := NewHandoverMonitor(mem, MonitorConfig{Enabled: false}, nil)
	disabled.Start()
	disabled.Stop()

	m := NewHandoverMonitor(mem, MonitorConfig{Enabled: true, Interval: 10 * time.Millisecond}, nil)
	m.Start()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()
}

// countingStore counts the monitor's checks.
type countingStore struct {
	cashdesk.Store
	checks atomic.Int32
}

func (s *countingStore) ListHandovers(ctx context.Context, f cashdesk.HandoverFilter) ([]cashdesk.Handover, error) {
	s.checks.Add(1)
	return s.Store.ListHandovers(ctx, f)
}

func TestHandoverMonitor_Restart(t *testing.T) {
	// GIVEN: A monitor that was started and stopped
	// WHEN: It is started again
	// THEN: It keeps checking until stopped once more

	now := time.Now().UTC()
	mem, _ := seedMonitorStore(t, &now)
	st := &countingStore{Store: mem}

	m := NewHandoverMonitor(st, MonitorConfig{Enabled: true, Interval: 5 * time.Millisecond}, nil)
	m.Start()
	require.Eventually(t, func() bool { return st.checks.Load() >= 2 }, time.Second, time.Millisecond)
	m.Stop()

	stopped := st.checks.Load()
	m.Start()
	require.Eventually(t, func() bool { return st.checks.Load() >= stopped+2 }, time.Second, time.Millisecond)
	m.Stop()

	after := st.checks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, st.checks.Load(), "no checks after the second stop")
}
