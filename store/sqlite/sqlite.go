/*
Package sqlite provides a SQLite-backed implementation of cashdesk.Backend.

PURPOSE:
  Persists shifts, ledger entries, handovers and the staff directory. The
  same schema ports to PostgreSQL with minor dialect changes (the partial
  unique index exists there too).

INTERFACES IMPLEMENTED:
  cashdesk.Store:     Shift / ledger entry / handover persistence
  cashdesk.TxStore:   WithTx over a *sql.Tx
  cashdesk.Directory: Staff lookup

KEY TABLES:
  staff:          Workers and managers (identity/role provider)
  shifts:         One row per shift; closing_note is the audit trail
  ledger_entries: Money movements; only status/confirmed_* ever change
  handovers:      Counted cash leaving a closing shift

SINGLE OPEN SHIFT:
  idx_shifts_one_open_per_worker is a partial unique index on
  shifts(worker_id) WHERE status = 'open'. Two concurrent opens for the same
  worker race on the INSERT itself and the loser gets a UNIQUE violation,
  mapped to cashdesk.ShiftAlreadyOpenError.

CONDITIONAL WRITES:
  Close, resolve and settle are UPDATE ... WHERE <still initial state>.
  Zero rows affected means someone else got there first.

STORAGE FORMATS:
  Amounts:    TEXT, decimal string (never REAL)
  Timestamps: TEXT, UTC, fixed-width so lexical order is time order
  Days:       TEXT, YYYY-MM-DD

CONCURRENCY:
  The pool is capped at one connection, so database/sql serializes access
  and ":memory:" stays a single database. Inside WithTx the callback must
  only use the Store it is handed.

USAGE:
  store, err := sqlite.New("./data/frontdesk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  desk := cashdesk.NewDesk(store, cashdesk.Config{})

SEE ALSO:
  - cashdesk/store.go: Interface definitions
  - cashdesk/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/frontdesk/cashdesk"
)

// timeLayout is RFC3339 with a fixed nanosecond fraction, always UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements cashdesk.Backend using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path and migrates
// the schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema. Safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('staff', 'manager')),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		shift_date TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('open', 'closed')),
		opening_cash TEXT NOT NULL DEFAULT '0',
		expected_cash TEXT NOT NULL DEFAULT '0',
		counted_cash TEXT NOT NULL DEFAULT '0',
		closing_cash TEXT NOT NULL DEFAULT '0',
		difference TEXT NOT NULL DEFAULT '0',
		opening_note TEXT NOT NULL DEFAULT '',
		closing_note TEXT NOT NULL DEFAULT '',
		opened_at TEXT NOT NULL,
		closed_at TEXT
	);

	-- At most one open shift per worker, enforced in the INSERT itself
	CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_one_open_per_worker
		ON shifts(worker_id) WHERE status = 'open';

	CREATE INDEX IF NOT EXISTS idx_shifts_worker_date
		ON shifts(worker_id, shift_date);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		tx_date TEXT NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('income', 'expense')),
		amount TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected')),
		source_type TEXT NOT NULL,
		shift_id TEXT REFERENCES shifts(id),
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		confirmed_by TEXT,
		confirmed_at TEXT
	);

	-- Shift summary (hot path)
	CREATE INDEX IF NOT EXISTS idx_ledger_shift_status
		ON ledger_entries(shift_id, status) WHERE shift_id IS NOT NULL;

	-- Dashboard balances by date range
	CREATE INDEX IF NOT EXISTS idx_ledger_tx_date
		ON ledger_entries(tx_date);

	CREATE TABLE IF NOT EXISTS handovers (
		id TEXT PRIMARY KEY,
		from_shift_id TEXT NOT NULL REFERENCES shifts(id),
		amount TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		to_manager_id TEXT,
		to_staff_id TEXT,
		to_shift_id TEXT REFERENCES shifts(id),
		status TEXT NOT NULL CHECK (status IN ('pending', 'received_by_staff', 'received_by_manager')),
		received_by TEXT,
		received_at TEXT,
		CHECK ((to_manager_id IS NULL) <> (to_staff_id IS NULL))
	);

	-- Claim on open (hot path)
	CREATE INDEX IF NOT EXISTS idx_handovers_pending_staff
		ON handovers(to_staff_id) WHERE status = 'pending';

	CREATE INDEX IF NOT EXISTS idx_handovers_from_shift
		ON handovers(from_shift_id);
	CREATE INDEX IF NOT EXISTS idx_handovers_to_shift
		ON handovers(to_shift_id) WHERE to_shift_id IS NOT NULL;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (cashdesk.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store cashdesk.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&ops{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) base() *ops { return &ops{q: s.db} }

func (s *Store) InsertOpenShift(ctx context.Context, sh cashdesk.Shift) error {
	return s.base().InsertOpenShift(ctx, sh)
}

func (s *Store) CloseShift(ctx context.Context, sh cashdesk.Shift) error {
	return s.base().CloseShift(ctx, sh)
}

func (s *Store) AddOpeningCash(ctx context.Context, id cashdesk.ShiftID, delta decimal.Decimal) error {
	return s.base().AddOpeningCash(ctx, id, delta)
}

func (s *Store) AppendClosingNote(ctx context.Context, id cashdesk.ShiftID, line string) error {
	return s.base().AppendClosingNote(ctx, id, line)
}

func (s *Store) GetShift(ctx context.Context, id cashdesk.ShiftID) (cashdesk.Shift, error) {
	return s.base().GetShift(ctx, id)
}

func (s *Store) FindOpenShift(ctx context.Context, worker cashdesk.StaffID) (cashdesk.Shift, error) {
	return s.base().FindOpenShift(ctx, worker)
}

func (s *Store) ListShifts(ctx context.Context, f cashdesk.ShiftFilter) ([]cashdesk.Shift, error) {
	return s.base().ListShifts(ctx, f)
}

func (s *Store) AppendEntry(ctx context.Context, e cashdesk.LedgerEntry) error {
	return s.base().AppendEntry(ctx, e)
}

func (s *Store) GetEntry(ctx context.Context, id cashdesk.EntryID) (cashdesk.LedgerEntry, error) {
	return s.base().GetEntry(ctx, id)
}

func (s *Store) SettleEntry(ctx context.Context, id cashdesk.EntryID, status cashdesk.EntryStatus, by cashdesk.StaffID, at time.Time) error {
	return s.base().SettleEntry(ctx, id, status, by, at)
}

func (s *Store) ListEntries(ctx context.Context, f cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	return s.base().ListEntries(ctx, f)
}

func (s *Store) InsertHandover(ctx context.Context, h cashdesk.Handover) error {
	return s.base().InsertHandover(ctx, h)
}

func (s *Store) GetHandover(ctx context.Context, id cashdesk.HandoverID) (cashdesk.Handover, error) {
	return s.base().GetHandover(ctx, id)
}

func (s *Store) ResolveHandover(ctx context.Context, h cashdesk.Handover) error {
	return s.base().ResolveHandover(ctx, h)
}

func (s *Store) ListHandovers(ctx context.Context, f cashdesk.HandoverFilter) ([]cashdesk.Handover, error) {
	return s.base().ListHandovers(ctx, f)
}

// ops runs every Store operation against a queryer, so the same code serves
// the pool and an open transaction.
type ops struct {
	q queryer
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, worker_id, shift_date, status, opening_cash, expected_cash,
	counted_cash, closing_cash, difference, opening_note, closing_note, opened_at, closed_at`

func (o *ops) InsertOpenShift(ctx context.Context, sh cashdesk.Shift) error {
	query := `
		INSERT INTO shifts
		(id, worker_id, shift_date, status, opening_cash, opening_note, opened_at)
		VALUES (?, ?, ?, 'open', ?, ?, ?)
	`

	_, err := o.q.ExecContext(ctx, query,
		sh.ID,
		sh.WorkerID,
		sh.ShiftDate.Format(cashdesk.DayLayout),
		sh.OpeningCash.String(),
		sh.OpeningNote,
		formatTime(sh.OpenedAt),
	)
	if err != nil {
		if isOpenShiftConflict(err) {
			return &cashdesk.ShiftAlreadyOpenError{WorkerID: sh.WorkerID}
		}
		return mapError(fmt.Errorf("failed to insert shift: %w", err))
	}
	return nil
}

func (o *ops) CloseShift(ctx context.Context, sh cashdesk.Shift) error {
	query := `
		UPDATE shifts SET
			status = 'closed',
			expected_cash = ?,
			counted_cash = ?,
			closing_cash = ?,
			difference = ?,
			closed_at = ?
		WHERE id = ? AND status = 'open'
	`

	var closedAt sql.NullString
	if sh.ClosedAt != nil {
		closedAt = nullString(formatTime(*sh.ClosedAt))
	}

	res, err := o.q.ExecContext(ctx, query,
		sh.ExpectedCash.String(),
		sh.CountedCash.String(),
		sh.ClosingCash.String(),
		sh.Difference.String(),
		closedAt,
		sh.ID,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to close shift: %w", err))
	}
	return o.expectOne(ctx, res, "shifts", string(sh.ID), cashdesk.ErrShiftNotFound, cashdesk.ErrShiftNotOpen)
}

func (o *ops) AddOpeningCash(ctx context.Context, id cashdesk.ShiftID, delta decimal.Decimal) error {
	sh, err := o.GetShift(ctx, id)
	if err != nil {
		return err
	}
	if !sh.IsOpen() {
		return cashdesk.ErrShiftNotOpen
	}

	res, err := o.q.ExecContext(ctx,
		"UPDATE shifts SET opening_cash = ? WHERE id = ? AND status = 'open' AND opening_cash = ?",
		sh.OpeningCash.Add(delta).String(), id, sh.OpeningCash.String(),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update opening cash: %w", err))
	}
	return o.expectOne(ctx, res, "shifts", string(id), cashdesk.ErrShiftNotFound, cashdesk.ErrShiftNotOpen)
}

func (o *ops) AppendClosingNote(ctx context.Context, id cashdesk.ShiftID, line string) error {
	query := `
		UPDATE shifts SET closing_note =
			CASE WHEN closing_note = '' THEN ? ELSE closing_note || char(10) || ? END
		WHERE id = ?
	`

	res, err := o.q.ExecContext(ctx, query, line, line, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to append closing note: %w", err))
	}
	return o.expectOne(ctx, res, "shifts", string(id), cashdesk.ErrShiftNotFound, cashdesk.ErrShiftNotFound)
}

func (o *ops) GetShift(ctx context.Context, id cashdesk.ShiftID) (cashdesk.Shift, error) {
	row := o.q.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE id = ?", id)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cashdesk.Shift{}, cashdesk.ErrShiftNotFound
	}
	return sh, err
}

func (o *ops) FindOpenShift(ctx context.Context, worker cashdesk.StaffID) (cashdesk.Shift, error) {
	row := o.q.QueryRowContext(ctx,
		"SELECT "+shiftColumns+" FROM shifts WHERE worker_id = ? AND status = 'open'", worker)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cashdesk.Shift{}, cashdesk.ErrShiftNotFound
	}
	return sh, err
}

func (o *ops) ListShifts(ctx context.Context, f cashdesk.ShiftFilter) ([]cashdesk.Shift, error) {
	var w where
	if f.WorkerID != "" {
		w.add("worker_id = ?", f.WorkerID)
	}
	if f.Day != nil {
		w.add("shift_date = ?", f.Day.Format(cashdesk.DayLayout))
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	rows, err := o.q.QueryContext(ctx,
		"SELECT "+shiftColumns+" FROM shifts"+w.sql()+" ORDER BY opened_at ASC, id ASC", w.args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query shifts: %w", err))
	}
	defer rows.Close()

	var shifts []cashdesk.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func scanShift(sc scanner) (cashdesk.Shift, error) {
	var (
		sh                                        cashdesk.Shift
		shiftDate, openedAt                       string
		opening, expected, counted, closing, diff string
		closedAt                                  sql.NullString
	)

	err := sc.Scan(
		&sh.ID, &sh.WorkerID, &shiftDate, &sh.Status,
		&opening, &expected, &counted, &closing, &diff,
		&sh.OpeningNote, &sh.ClosingNote, &openedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sh, err
		}
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}

	sh.ShiftDate, _ = time.Parse(cashdesk.DayLayout, shiftDate)
	sh.OpeningCash = parseAmount(opening)
	sh.ExpectedCash = parseAmount(expected)
	sh.CountedCash = parseAmount(counted)
	sh.ClosingCash = parseAmount(closing)
	sh.Difference = parseAmount(diff)
	sh.OpenedAt = parseTime(openedAt)
	sh.ClosedAt = parseNullTime(closedAt)
	return sh, nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

const entryColumns = `id, tx_date, direction, amount, channel, status, source_type, shift_id,
	description, created_by, created_at, confirmed_by, confirmed_at`

func (o *ops) AppendEntry(ctx context.Context, e cashdesk.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
		(id, tx_date, direction, amount, channel, status, source_type, shift_id,
		 description, created_by, created_at, confirmed_by, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var confirmedAt sql.NullString
	if e.ConfirmedAt != nil {
		confirmedAt = nullString(formatTime(*e.ConfirmedAt))
	}

	_, err := o.q.ExecContext(ctx, query,
		e.ID,
		formatTime(e.TxDate),
		e.Direction,
		e.Amount.String(),
		e.Channel,
		e.Status,
		e.Source,
		nullString(string(e.ShiftID)),
		e.Description,
		e.CreatedBy,
		formatTime(e.CreatedAt),
		nullString(string(e.ConfirmedBy)),
		confirmedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return cashdesk.ErrShiftNotFound
		}
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate id %s", cashdesk.ErrInvalidEntry, e.ID)
		}
		return mapError(fmt.Errorf("failed to append ledger entry: %w", err))
	}
	return nil
}

func (o *ops) GetEntry(ctx context.Context, id cashdesk.EntryID) (cashdesk.LedgerEntry, error) {
	row := o.q.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM ledger_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cashdesk.LedgerEntry{}, cashdesk.ErrEntryNotFound
	}
	return e, err
}

func (o *ops) SettleEntry(ctx context.Context, id cashdesk.EntryID, status cashdesk.EntryStatus, by cashdesk.StaffID, at time.Time) error {
	res, err := o.q.ExecContext(ctx,
		"UPDATE ledger_entries SET status = ?, confirmed_by = ?, confirmed_at = ? WHERE id = ? AND status = 'pending'",
		status, by, formatTime(at), id,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to settle ledger entry: %w", err))
	}
	return o.expectOne(ctx, res, "ledger_entries", string(id), cashdesk.ErrEntryNotFound, cashdesk.ErrEntryAlreadySettled)
}

func (o *ops) ListEntries(ctx context.Context, f cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	var w where
	if f.ShiftID != "" {
		w.add("shift_id = ?", f.ShiftID)
	}
	if f.From != nil {
		w.add("tx_date >= ?", formatTime(*f.From))
	}
	if f.To != nil {
		w.add("tx_date <= ?", formatTime(*f.To))
	}
	if len(f.Channels) > 0 {
		whereIn(&w, "channel", f.Channels)
	}
	if len(f.Statuses) > 0 {
		whereIn(&w, "status", f.Statuses)
	}

	rows, err := o.q.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries"+w.sql()+" ORDER BY tx_date ASC, created_at ASC, id ASC", w.args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query ledger entries: %w", err))
	}
	defer rows.Close()

	var entries []cashdesk.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(sc scanner) (cashdesk.LedgerEntry, error) {
	var (
		e                       cashdesk.LedgerEntry
		txDate, amount, created string
		shiftID, confirmedBy    sql.NullString
		confirmedAt             sql.NullString
	)

	err := sc.Scan(
		&e.ID, &txDate, &e.Direction, &amount, &e.Channel, &e.Status, &e.Source, &shiftID,
		&e.Description, &e.CreatedBy, &created, &confirmedBy, &confirmedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	e.TxDate = parseTime(txDate)
	e.Amount = parseAmount(amount)
	e.ShiftID = cashdesk.ShiftID(shiftID.String)
	e.CreatedAt = parseTime(created)
	e.ConfirmedBy = cashdesk.StaffID(confirmedBy.String)
	e.ConfirmedAt = parseNullTime(confirmedAt)
	return e, nil
}

// =============================================================================
// HANDOVERS
// =============================================================================

const handoverColumns = `id, from_shift_id, amount, tx_date, note, created_by, created_at,
	to_manager_id, to_staff_id, to_shift_id, status, received_by, received_at`

func (o *ops) InsertHandover(ctx context.Context, h cashdesk.Handover) error {
	query := `
		INSERT INTO handovers
		(id, from_shift_id, amount, tx_date, note, created_by, created_at,
		 to_manager_id, to_staff_id, to_shift_id, status, received_by, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var receivedAt sql.NullString
	if h.ReceivedAt != nil {
		receivedAt = nullString(formatTime(*h.ReceivedAt))
	}

	_, err := o.q.ExecContext(ctx, query,
		h.ID,
		h.FromShiftID,
		h.Amount.String(),
		formatTime(h.TxDate),
		h.Note,
		h.CreatedBy,
		formatTime(h.CreatedAt),
		nullString(string(h.ToManagerID)),
		nullString(string(h.ToStaffID)),
		nullString(string(h.ToShiftID)),
		h.Status,
		nullString(string(h.ReceivedBy)),
		receivedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return cashdesk.ErrShiftNotFound
		}
		return mapError(fmt.Errorf("failed to insert handover: %w", err))
	}
	return nil
}

func (o *ops) GetHandover(ctx context.Context, id cashdesk.HandoverID) (cashdesk.Handover, error) {
	row := o.q.QueryRowContext(ctx, "SELECT "+handoverColumns+" FROM handovers WHERE id = ?", id)
	h, err := scanHandover(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cashdesk.Handover{}, cashdesk.ErrHandoverNotFound
	}
	return h, err
}

func (o *ops) ResolveHandover(ctx context.Context, h cashdesk.Handover) error {
	query := `
		UPDATE handovers SET
			to_shift_id = ?,
			status = ?,
			received_by = ?,
			received_at = ?
		WHERE id = ? AND status = 'pending' AND to_shift_id IS NULL
	`

	var receivedAt sql.NullString
	if h.ReceivedAt != nil {
		receivedAt = nullString(formatTime(*h.ReceivedAt))
	}

	res, err := o.q.ExecContext(ctx, query,
		nullString(string(h.ToShiftID)),
		h.Status,
		nullString(string(h.ReceivedBy)),
		receivedAt,
		h.ID,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return cashdesk.ErrShiftNotFound
		}
		return mapError(fmt.Errorf("failed to resolve handover: %w", err))
	}
	return o.expectOne(ctx, res, "handovers", string(h.ID), cashdesk.ErrHandoverNotFound, cashdesk.ErrHandoverAlreadyResolved)
}

func (o *ops) ListHandovers(ctx context.Context, f cashdesk.HandoverFilter) ([]cashdesk.Handover, error) {
	var w where
	if len(f.FromShiftIDs) > 0 {
		whereIn(&w, "from_shift_id", f.FromShiftIDs)
	}
	if len(f.ToShiftIDs) > 0 {
		whereIn(&w, "to_shift_id", f.ToShiftIDs)
	}
	if f.ToStaffID != "" {
		w.add("to_staff_id = ?", f.ToStaffID)
	}
	if len(f.Statuses) > 0 {
		whereIn(&w, "status", f.Statuses)
	}
	if f.CreatedTo != nil {
		w.add("created_at <= ?", formatTime(*f.CreatedTo))
	}
	if f.ReceivedFrom != nil {
		w.add("received_at >= ?", formatTime(*f.ReceivedFrom))
	}
	if f.ReceivedTo != nil {
		w.add("received_at <= ?", formatTime(*f.ReceivedTo))
	}

	rows, err := o.q.QueryContext(ctx,
		"SELECT "+handoverColumns+" FROM handovers"+w.sql()+" ORDER BY created_at ASC, id ASC", w.args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query handovers: %w", err))
	}
	defer rows.Close()

	var handovers []cashdesk.Handover
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, err
		}
		handovers = append(handovers, h)
	}
	return handovers, rows.Err()
}

func scanHandover(sc scanner) (cashdesk.Handover, error) {
	var (
		h                                   cashdesk.Handover
		amount, txDate, createdAt           string
		toManager, toStaff, toShift, recvBy sql.NullString
		receivedAt                          sql.NullString
	)

	err := sc.Scan(
		&h.ID, &h.FromShiftID, &amount, &txDate, &h.Note, &h.CreatedBy, &createdAt,
		&toManager, &toStaff, &toShift, &h.Status, &recvBy, &receivedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("failed to scan handover: %w", err)
	}

	h.Amount = parseAmount(amount)
	h.TxDate = parseTime(txDate)
	h.CreatedAt = parseTime(createdAt)
	h.ToManagerID = cashdesk.StaffID(toManager.String)
	h.ToStaffID = cashdesk.StaffID(toStaff.String)
	h.ToShiftID = cashdesk.ShiftID(toShift.String)
	h.ReceivedBy = cashdesk.StaffID(recvBy.String)
	h.ReceivedAt = parseNullTime(receivedAt)
	return h, nil
}

// =============================================================================
// STAFF DIRECTORY (cashdesk.Directory interface)
// =============================================================================

// SaveStaff creates or updates a staff member.
func (s *Store) SaveStaff(ctx context.Context, st cashdesk.Staff) error {
	query := `
		INSERT INTO staff (id, name, role, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Name, st.Role, st.Active,
		formatTime(time.Now()),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save staff: %w", err))
	}
	return nil
}

// LookupStaff returns cashdesk.ErrStaffNotFound for unknown ids.
func (s *Store) LookupStaff(ctx context.Context, id cashdesk.StaffID) (cashdesk.Staff, error) {
	var st cashdesk.Staff
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, role, active FROM staff WHERE id = ?", id,
	).Scan(&st.ID, &st.Name, &st.Role, &st.Active)

	if errors.Is(err, sql.ErrNoRows) {
		return cashdesk.Staff{}, cashdesk.ErrStaffNotFound
	}
	if err != nil {
		return cashdesk.Staff{}, mapError(fmt.Errorf("failed to load staff: %w", err))
	}
	return st, nil
}

// ListStaff returns all staff, ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]cashdesk.Staff, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, role, active FROM staff ORDER BY name, id")
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query staff: %w", err))
	}
	defer rows.Close()

	var out []cashdesk.Staff
	for rows.Next() {
		var st cashdesk.Staff
		if err := rows.Scan(&st.ID, &st.Name, &st.Role, &st.Active); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"handovers", "ledger_entries", "shifts", "staff"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// whereIn adds "column IN (...)". An empty list matches nothing.
func whereIn[T ~string](w *where, column string, values []T) {
	if len(values) == 0 {
		w.conds = append(w.conds, "1 = 0")
		return
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	w.add(column+" IN ("+marks+")", args...)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// expectOne turns a zero-row conditional update into notFound or conflict.
func (o *ops) expectOne(ctx context.Context, res sql.Result, table, id string, notFound, conflict error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := o.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&exists); err != nil {
		return mapError(err)
	}
	if exists == 0 {
		return notFound
	}
	return conflict
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// mapError marks lock contention as retryable. Everything else passes
// through unchanged.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", cashdesk.ErrStoreBusy, err)
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// isOpenShiftConflict reports a violation of idx_shifts_one_open_per_worker.
// SQLite names the indexed column, not the index, in the message.
func isOpenShiftConflict(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "shifts.worker_id")
}
