// Package store provides in-process Backend implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/frontdesk/cashdesk"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a cashdesk.Backend held in maps behind one mutex. Every public
// method locks; WithTx holds the lock for the whole callback and hands it an
// unlocked view, so reads inside a transaction see its own writes.
type Memory struct {
	mu sync.Mutex
	d  *data
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

// SaveStaff creates or replaces a staff member.
func (m *Memory) SaveStaff(_ context.Context, s cashdesk.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.staff[s.ID] = s
	return nil
}

// ListStaff returns every staff member, sorted by id.
func (m *Memory) ListStaff(_ context.Context) ([]cashdesk.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cashdesk.Staff, 0, len(m.d.staff))
	for _, s := range m.d.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) LookupStaff(_ context.Context, id cashdesk.StaffID) (cashdesk.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.d.staff[id]
	if !ok {
		return cashdesk.Staff{}, cashdesk.ErrStaffNotFound
	}
	return s, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d = newData()
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(cashdesk.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// locked runs f against the live data under the mutex.
func locked[T any](m *Memory, f func(*data) (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m.d)
}

func (m *Memory) InsertOpenShift(ctx context.Context, s cashdesk.Shift) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.InsertOpenShift(ctx, s) })
	return err
}

func (m *Memory) CloseShift(ctx context.Context, s cashdesk.Shift) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.CloseShift(ctx, s) })
	return err
}

func (m *Memory) AddOpeningCash(ctx context.Context, id cashdesk.ShiftID, delta decimal.Decimal) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.AddOpeningCash(ctx, id, delta) })
	return err
}

func (m *Memory) AppendClosingNote(ctx context.Context, id cashdesk.ShiftID, line string) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.AppendClosingNote(ctx, id, line) })
	return err
}

func (m *Memory) GetShift(ctx context.Context, id cashdesk.ShiftID) (cashdesk.Shift, error) {
	return locked(m, func(d *data) (cashdesk.Shift, error) { return d.GetShift(ctx, id) })
}

func (m *Memory) FindOpenShift(ctx context.Context, worker cashdesk.StaffID) (cashdesk.Shift, error) {
	return locked(m, func(d *data) (cashdesk.Shift, error) { return d.FindOpenShift(ctx, worker) })
}

func (m *Memory) ListShifts(ctx context.Context, f cashdesk.ShiftFilter) ([]cashdesk.Shift, error) {
	return locked(m, func(d *data) ([]cashdesk.Shift, error) { return d.ListShifts(ctx, f) })
}

func (m *Memory) AppendEntry(ctx context.Context, e cashdesk.LedgerEntry) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.AppendEntry(ctx, e) })
	return err
}

func (m *Memory) GetEntry(ctx context.Context, id cashdesk.EntryID) (cashdesk.LedgerEntry, error) {
	return locked(m, func(d *data) (cashdesk.LedgerEntry, error) { return d.GetEntry(ctx, id) })
}

func (m *Memory) SettleEntry(ctx context.Context, id cashdesk.EntryID, status cashdesk.EntryStatus, by cashdesk.StaffID, at time.Time) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.SettleEntry(ctx, id, status, by, at) })
	return err
}

func (m *Memory) ListEntries(ctx context.Context, f cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	return locked(m, func(d *data) ([]cashdesk.LedgerEntry, error) { return d.ListEntries(ctx, f) })
}

func (m *Memory) InsertHandover(ctx context.Context, h cashdesk.Handover) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.InsertHandover(ctx, h) })
	return err
}

func (m *Memory) GetHandover(ctx context.Context, id cashdesk.HandoverID) (cashdesk.Handover, error) {
	return locked(m, func(d *data) (cashdesk.Handover, error) { return d.GetHandover(ctx, id) })
}

func (m *Memory) ResolveHandover(ctx context.Context, h cashdesk.Handover) error {
	_, err := locked(m, func(d *data) (struct{}, error) { return struct{}{}, d.ResolveHandover(ctx, h) })
	return err
}

func (m *Memory) ListHandovers(ctx context.Context, f cashdesk.HandoverFilter) ([]cashdesk.Handover, error) {
	return locked(m, func(d *data) ([]cashdesk.Handover, error) { return d.ListHandovers(ctx, f) })
}

// =============================================================================
// DATA - Unlocked state, also the transactional view
// =============================================================================

type data struct {
	staff map[cashdesk.StaffID]cashdesk.Staff

	shifts    map[cashdesk.ShiftID]cashdesk.Shift
	openShift map[cashdesk.StaffID]cashdesk.ShiftID
	shiftSeq  []cashdesk.ShiftID

	entries  map[cashdesk.EntryID]cashdesk.LedgerEntry
	entrySeq []cashdesk.EntryID

	handovers   map[cashdesk.HandoverID]cashdesk.Handover
	handoverSeq []cashdesk.HandoverID
}

func newData() *data {
	return &data{
		staff:     make(map[cashdesk.StaffID]cashdesk.Staff),
		shifts:    make(map[cashdesk.ShiftID]cashdesk.Shift),
		openShift: make(map[cashdesk.StaffID]cashdesk.ShiftID),
		entries:   make(map[cashdesk.EntryID]cashdesk.LedgerEntry),
		handovers: make(map[cashdesk.HandoverID]cashdesk.Handover),
	}
}

func (d *data) clone() *data {
	c := &data{
		staff:       make(map[cashdesk.StaffID]cashdesk.Staff, len(d.staff)),
		shifts:      make(map[cashdesk.ShiftID]cashdesk.Shift, len(d.shifts)),
		openShift:   make(map[cashdesk.StaffID]cashdesk.ShiftID, len(d.openShift)),
		shiftSeq:    append([]cashdesk.ShiftID{}, d.shiftSeq...),
		entries:     make(map[cashdesk.EntryID]cashdesk.LedgerEntry, len(d.entries)),
		entrySeq:    append([]cashdesk.EntryID{}, d.entrySeq...),
		handovers:   make(map[cashdesk.HandoverID]cashdesk.Handover, len(d.handovers)),
		handoverSeq: append([]cashdesk.HandoverID{}, d.handoverSeq...),
	}
	for k, v := range d.staff {
		c.staff[k] = v
	}
	for k, v := range d.shifts {
		c.shifts[k] = v
	}
	for k, v := range d.openShift {
		c.openShift[k] = v
	}
	for k, v := range d.entries {
		c.entries[k] = v
	}
	for k, v := range d.handovers {
		c.handovers[k] = v
	}
	return c
}

// ---- shifts ----

func (d *data) InsertOpenShift(_ context.Context, s cashdesk.Shift) error {
	if existing, ok := d.openShift[s.WorkerID]; ok {
		return &cashdesk.ShiftAlreadyOpenError{WorkerID: s.WorkerID, ShiftID: existing}
	}
	s.Status = cashdesk.ShiftOpen
	d.shifts[s.ID] = s
	d.openShift[s.WorkerID] = s.ID
	d.shiftSeq = append(d.shiftSeq, s.ID)
	return nil
}

func (d *data) CloseShift(_ context.Context, s cashdesk.Shift) error {
	stored, ok := d.shifts[s.ID]
	if !ok {
		return cashdesk.ErrShiftNotFound
	}
	if !stored.IsOpen() {
		return cashdesk.ErrShiftNotOpen
	}
	stored.Status = cashdesk.ShiftClosed
	stored.ExpectedCash = s.ExpectedCash
	stored.CountedCash = s.CountedCash
	stored.ClosingCash = s.ClosingCash
	stored.Difference = s.Difference
	stored.ClosedAt = s.ClosedAt
	d.shifts[s.ID] = stored
	delete(d.openShift, stored.WorkerID)
	return nil
}

func (d *data) AddOpeningCash(_ context.Context, id cashdesk.ShiftID, delta decimal.Decimal) error {
	stored, ok := d.shifts[id]
	if !ok {
		return cashdesk.ErrShiftNotFound
	}
	if !stored.IsOpen() {
		return cashdesk.ErrShiftNotOpen
	}
	stored.OpeningCash = stored.OpeningCash.Add(delta)
	d.shifts[id] = stored
	return nil
}

func (d *data) AppendClosingNote(_ context.Context, id cashdesk.ShiftID, line string) error {
	stored, ok := d.shifts[id]
	if !ok {
		return cashdesk.ErrShiftNotFound
	}
	stored.ClosingNote = appendLine(stored.ClosingNote, line)
	d.shifts[id] = stored
	return nil
}

func (d *data) GetShift(_ context.Context, id cashdesk.ShiftID) (cashdesk.Shift, error) {
	s, ok := d.shifts[id]
	if !ok {
		return cashdesk.Shift{}, cashdesk.ErrShiftNotFound
	}
	return s, nil
}

func (d *data) FindOpenShift(_ context.Context, worker cashdesk.StaffID) (cashdesk.Shift, error) {
	id, ok := d.openShift[worker]
	if !ok {
		return cashdesk.Shift{}, cashdesk.ErrShiftNotFound
	}
	return d.shifts[id], nil
}

func (d *data) ListShifts(_ context.Context, f cashdesk.ShiftFilter) ([]cashdesk.Shift, error) {
	var out []cashdesk.Shift
	for _, id := range d.shiftSeq {
		s := d.shifts[id]
		if f.WorkerID != "" && s.WorkerID != f.WorkerID {
			continue
		}
		if f.Day != nil && !cashdesk.SameDay(s.ShiftDate, *f.Day) {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ---- ledger entries ----

func (d *data) AppendEntry(_ context.Context, e cashdesk.LedgerEntry) error {
	if _, ok := d.entries[e.ID]; ok {
		return cashdesk.ErrInvalidEntry
	}
	d.entries[e.ID] = e
	d.entrySeq = append(d.entrySeq, e.ID)
	return nil
}

func (d *data) GetEntry(_ context.Context, id cashdesk.EntryID) (cashdesk.LedgerEntry, error) {
	e, ok := d.entries[id]
	if !ok {
		return cashdesk.LedgerEntry{}, cashdesk.ErrEntryNotFound
	}
	return e, nil
}

func (d *data) SettleEntry(_ context.Context, id cashdesk.EntryID, status cashdesk.EntryStatus, by cashdesk.StaffID, at time.Time) error {
	e, ok := d.entries[id]
	if !ok {
		return cashdesk.ErrEntryNotFound
	}
	if e.Status != cashdesk.EntryPending {
		return cashdesk.ErrEntryAlreadySettled
	}
	e.Status = status
	e.ConfirmedBy = by
	e.ConfirmedAt = &at
	d.entries[id] = e
	return nil
}

func (d *data) ListEntries(_ context.Context, f cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	var out []cashdesk.LedgerEntry
	for _, id := range d.entrySeq {
		e := d.entries[id]
		if f.ShiftID != "" && e.ShiftID != f.ShiftID {
			continue
		}
		if f.From != nil && e.TxDate.Before(*f.From) {
			continue
		}
		if f.To != nil && e.TxDate.After(*f.To) {
			continue
		}
		if len(f.Channels) > 0 && !contains(f.Channels, e.Channel) {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ---- handovers ----

func (d *data) InsertHandover(_ context.Context, h cashdesk.Handover) error {
	if _, ok := d.shifts[h.FromShiftID]; !ok {
		return cashdesk.ErrShiftNotFound
	}
	d.handovers[h.ID] = h
	d.handoverSeq = append(d.handoverSeq, h.ID)
	return nil
}

func (d *data) GetHandover(_ context.Context, id cashdesk.HandoverID) (cashdesk.Handover, error) {
	h, ok := d.handovers[id]
	if !ok {
		return cashdesk.Handover{}, cashdesk.ErrHandoverNotFound
	}
	return h, nil
}

func (d *data) ResolveHandover(_ context.Context, h cashdesk.Handover) error {
	stored, ok := d.handovers[h.ID]
	if !ok {
		return cashdesk.ErrHandoverNotFound
	}
	if !stored.IsPending() {
		return cashdesk.ErrHandoverAlreadyResolved
	}
	stored.ToShiftID = h.ToShiftID
	stored.Status = h.Status
	stored.ReceivedBy = h.ReceivedBy
	stored.ReceivedAt = h.ReceivedAt
	d.handovers[h.ID] = stored
	return nil
}

func (d *data) ListHandovers(_ context.Context, f cashdesk.HandoverFilter) ([]cashdesk.Handover, error) {
	var out []cashdesk.Handover
	for _, id := range d.handoverSeq {
		h := d.handovers[id]
		if len(f.FromShiftIDs) > 0 && !contains(f.FromShiftIDs, h.FromShiftID) {
			continue
		}
		if len(f.ToShiftIDs) > 0 && !contains(f.ToShiftIDs, h.ToShiftID) {
			continue
		}
		if f.ToStaffID != "" && h.ToStaffID != f.ToStaffID {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, h.Status) {
			continue
		}
		if f.CreatedTo != nil && h.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		if f.ReceivedFrom != nil || f.ReceivedTo != nil {
			if h.ReceivedAt == nil {
				continue
			}
			if f.ReceivedFrom != nil && h.ReceivedAt.Before(*f.ReceivedFrom) {
				continue
			}
			if f.ReceivedTo != nil && h.ReceivedAt.After(*f.ReceivedTo) {
				continue
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func appendLine(note, line string) string {
	if strings.TrimSpace(note) == "" {
		return line
	}
	return note + "\n" + line
}
