/*
handlers.go - HTTP API handlers for the front-desk cash engine

PURPOSE:
  Exposes the cash desk engine via REST API. Handles HTTP request/response,
  JSON serialization, caller identity, and delegates to cashdesk.Desk.

ENDPOINTS (all under /api, bearer token required):
  Shifts:
    POST   /shifts                    Open a shift (claims pending handovers)
    GET    /shifts/current            Caller's open shift
    GET    /shifts/{id}               Shift details
    GET    /shifts/{id}/summary       Expected cash, recomputed
    GET    /shifts/{id}/entries       Ledger entries of the shift
    POST   /shifts/{id}/close         Close and hand over counted cash

  Wallet:
    GET    /wallet                    Per-channel balances (?from=&to=&shift_id=)

  Ledger entries:
    POST   /entries                   Record an entry
    POST   /entries/{id}/confirm      Confirm a pending entry (manager)
    POST   /entries/{id}/reject       Reject a pending entry (manager)

  Handovers:
    GET    /handovers/pending         Pending handovers (own, or all for managers)
    POST   /handovers/{id}/confirm    Manual receipt by a manager

  Staff:
    GET    /staff                     Directory (recipient pickers)
    POST   /staff                     Register staff (manager)
    GET    /staff/{id}/daily          Received/delivered on ?day=

ACCESS:
  A worker sees their own shifts, entries and summaries. Managers see all.
  Authorization for engine operations (close by someone else, manual
  confirm, entry settlement) is checked again inside the engine.

ERROR HANDLING:
  Every engine error kind maps to a distinct status and code (errors.go).
  Read endpoints retry once on a transient store failure (retry.go);
  open/close/confirm never retry.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/frontdesk/cashdesk"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// StaffDirectory is the staff registry behind the directory endpoints.
type StaffDirectory interface {
	cashdesk.Directory
	SaveStaff(ctx context.Context, s cashdesk.Staff) error
	ListStaff(ctx context.Context) ([]cashdesk.Staff, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Desk  *cashdesk.Desk
	Staff StaffDirectory
}

// NewHandler creates a new handler.
func NewHandler(desk *cashdesk.Desk, staff StaffDirectory) *Handler {
	return &Handler{Desk: desk, Staff: staff}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// OpenShift opens a shift for the caller (or, for managers, for worker_id).
// POST /api/shifts
func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req OpenShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	worker := claims.StaffID()
	if req.WorkerID != "" && cashdesk.StaffID(req.WorkerID) != worker {
		if !claims.IsManager() {
			writeDomainError(w, r, cashdesk.ErrForbidden)
			return
		}
		worker = cashdesk.StaffID(req.WorkerID)
	}

	var shiftDate time.Time
	if req.ShiftDate != "" {
		d, err := cashdesk.ParseDay(req.ShiftDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid shift_date", err)
			return
		}
		shiftDate = d
	}

	result, err := h.Desk.Shifts.OpenShift(r.Context(), cashdesk.OpenRequest{
		WorkerID:  worker,
		ShiftDate: shiftDate,
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, OpenShiftResponse{
		Shift:            toShiftDTO(result.Shift),
		ClaimedAmount:    money(result.Claimed.Amount),
		ClaimedHandovers: toHandoverDTOs(result.Claimed.Handovers),
	})
}

// CurrentShift returns the caller's open shift.
// GET /api/shifts/current?worker_id=
func (h *Handler) CurrentShift(w http.ResponseWriter, r *http.Request) {
	worker, ok := h.subject(w, r, r.URL.Query().Get("worker_id"))
	if !ok {
		return
	}

	shift, err := retryRead(r.Context(), "current_shift", func() (cashdesk.Shift, error) {
		return h.Desk.Shifts.CurrentShift(r.Context(), worker)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// GetShift returns a shift.
// GET /api/shifts/{id}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.visibleShift(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// GetShiftSummary recomputes the shift's expected cash.
// GET /api/shifts/{id}/summary
func (h *Handler) GetShiftSummary(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.visibleShift(w, r)
	if !ok {
		return
	}

	summary, err := retryRead(r.Context(), "shift_summary", func() (cashdesk.ShiftSummary, error) {
		return h.Desk.Shifts.Summary(r.Context(), shift.ID)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetShiftEntries lists the shift's ledger entries.
// GET /api/shifts/{id}/entries
func (h *Handler) GetShiftEntries(w http.ResponseWriter, r *http.Request) {
	shift, ok := h.visibleShift(w, r)
	if !ok {
		return
	}

	entries, err := retryRead(r.Context(), "shift_entries", func() ([]cashdesk.LedgerEntry, error) {
		return h.Desk.Ledger.EntriesForShift(r.Context(), shift.ID)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// CloseShift closes a shift and creates its handover.
// POST /api/shifts/{id}/close
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req CloseShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	counted, err := req.CountedCash.Parse("counted_cash")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := h.Desk.Shifts.CloseShift(r.Context(), cashdesk.CloseRequest{
		ShiftID:     cashdesk.ShiftID(chi.URLParam(r, "id")),
		CountedCash: counted,
		Recipient: cashdesk.Recipient{
			ManagerID:    cashdesk.StaffID(strings.TrimSpace(req.ManagerID)),
			NextWorkerID: cashdesk.StaffID(strings.TrimSpace(req.NextWorkerID)),
		},
		Note:    req.Note,
		ActorID: claims.StaffID(),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CloseShiftResponse{
		Shift:    toShiftDTO(result.Shift),
		Handover: toHandoverDTO(result.Handover),
	})
}

// =============================================================================
// WALLET
// =============================================================================

// GetWallet returns per-channel balances.
// GET /api/wallet?from=YYYY-MM-DD&to=YYYY-MM-DD&shift_id=
// Without shift_id the view is organization-wide and requires a manager.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	q := r.URL.Query()

	var f cashdesk.BalanceFilter
	if v := q.Get("from"); v != "" {
		d, err := cashdesk.ParseDay(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from", err)
			return
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := cashdesk.ParseDay(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to", err)
			return
		}
		_, end := cashdesk.DayBounds(d)
		f.To = &end
	}

	if id := q.Get("shift_id"); id != "" {
		shift, err := h.Desk.Shifts.GetShift(r.Context(), cashdesk.ShiftID(id))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !canView(claims, shift.WorkerID) {
			writeDomainError(w, r, cashdesk.ErrForbidden)
			return
		}
		f.ShiftID = shift.ID
	} else if !claims.IsManager() {
		writeDomainError(w, r, cashdesk.ErrForbidden)
		return
	}

	balances, err := retryRead(r.Context(), "wallet", func() (cashdesk.Balances, error) {
		return h.Desk.Wallet.ComputeBalances(r.Context(), f)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(balances))
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// RecordEntry records a ledger entry as the caller. A manual entry without
// shift_id goes to the caller's open shift. Only managers may record an
// entry as already confirmed.
// POST /api/entries
func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req RecordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := req.Amount.Parse("amount")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var txDate time.Time
	if req.TxDate != "" {
		txDate, err = time.Parse(time.RFC3339, req.TxDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tx_date (use RFC3339)", err)
			return
		}
	}

	source := cashdesk.SourceType(req.Source)
	if source == "" {
		source = cashdesk.SourceManual
	}
	if req.Confirmed && !claims.IsManager() {
		writeDomainError(w, r, cashdesk.ErrForbidden)
		return
	}

	entry, err := h.Desk.Ledger.RecordEntry(r.Context(), cashdesk.RecordRequest{
		TxDate:       txDate,
		Direction:    cashdesk.Direction(req.Direction),
		Amount:       amount,
		Channel:      cashdesk.Channel(req.Channel),
		Source:       source,
		Description:  req.Description,
		CreatedBy:    claims.StaffID(),
		ShiftID:      cashdesk.ShiftID(req.ShiftID),
		UseOpenShift: req.ShiftID == "" && source == cashdesk.SourceManual,
		Confirmed:    req.Confirmed,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// ConfirmEntry confirms a pending entry.
// POST /api/entries/{id}/confirm
func (h *Handler) ConfirmEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Desk.Ledger.ConfirmEntry(r.Context(),
		cashdesk.EntryID(chi.URLParam(r, "id")), ClaimsFrom(r.Context()).StaffID())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// RejectEntry rejects a pending entry.
// POST /api/entries/{id}/reject
func (h *Handler) RejectEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Desk.Ledger.RejectEntry(r.Context(),
		cashdesk.EntryID(chi.URLParam(r, "id")), ClaimsFrom(r.Context()).StaffID())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// HANDOVERS
// =============================================================================

// ListPendingHandovers lists pending handovers addressed to the caller, or
// to worker_id. Managers without worker_id see every pending handover.
// GET /api/handovers/pending?worker_id=
func (h *Handler) ListPendingHandovers(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	workerParam := r.URL.Query().Get("worker_id")

	var (
		pending []cashdesk.Handover
		err     error
	)
	if workerParam == "" && claims.IsManager() {
		pending, err = retryRead(r.Context(), "pending_handovers", func() ([]cashdesk.Handover, error) {
			return h.Desk.Handovers.ListPending(r.Context())
		})
	} else {
		worker, ok := h.subject(w, r, workerParam)
		if !ok {
			return
		}
		pending, err = retryRead(r.Context(), "pending_handovers", func() ([]cashdesk.Handover, error) {
			return h.Desk.Handovers.PendingFor(r.Context(), worker)
		})
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHandoverDTOs(pending))
}

// ConfirmHandover records a manager's manual receipt of a pending handover.
// POST /api/handovers/{id}/confirm
func (h *Handler) ConfirmHandover(w http.ResponseWriter, r *http.Request) {
	var req ConfirmHandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := req.ActualAmount.Parse("actual_amount")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	handover, err := h.Desk.Handovers.ManualConfirm(r.Context(),
		cashdesk.HandoverID(chi.URLParam(r, "id")), ClaimsFrom(r.Context()).StaffID(), amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHandoverDTO(handover))
}

// =============================================================================
// STAFF
// =============================================================================

// ListStaff returns the directory.
// GET /api/staff
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.Staff.ListStaff(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]StaffDTO, len(staff))
	for i, s := range staff {
		out[i] = toStaffDTO(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateStaff registers or updates a staff member.
// POST /api/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := staffFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Staff.SaveStaff(r.Context(), s); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(s))
}

// GetDailySummary returns what a worker received and delivered on a day.
// GET /api/staff/{id}/daily?day=YYYY-MM-DD (default today)
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	worker, ok := h.subject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	day := cashdesk.Day(time.Now().UTC())
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := cashdesk.ParseDay(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid day", err)
			return
		}
		day = d
	}

	summary, err := retryRead(r.Context(), "daily_summary", func() (cashdesk.DailySummary, error) {
		return h.Desk.Daily.SummaryFor(r.Context(), worker, day)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

// subject resolves whose data is requested: requested if set (managers, or
// the caller themselves), else the caller.
func (h *Handler) subject(w http.ResponseWriter, r *http.Request, requested string) (cashdesk.StaffID, bool) {
	claims := ClaimsFrom(r.Context())
	if requested == "" {
		return claims.StaffID(), true
	}
	id := cashdesk.StaffID(requested)
	if !canView(claims, id) {
		writeDomainError(w, r, cashdesk.ErrForbidden)
		return "", false
	}
	return id, true
}

// visibleShift loads {id} and checks the caller may see it.
func (h *Handler) visibleShift(w http.ResponseWriter, r *http.Request) (cashdesk.Shift, bool) {
	id := cashdesk.ShiftID(chi.URLParam(r, "id"))
	shift, err := retryRead(r.Context(), "get_shift", func() (cashdesk.Shift, error) {
		return h.Desk.Shifts.GetShift(r.Context(), id)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return cashdesk.Shift{}, false
	}
	if !canView(ClaimsFrom(r.Context()), shift.WorkerID) {
		writeDomainError(w, r, cashdesk.ErrForbidden)
		return cashdesk.Shift{}, false
	}
	return shift, true
}

func canView(c *Claims, owner cashdesk.StaffID) bool {
	return c != nil && (c.IsManager() || c.StaffID() == owner)
}

func staffFromRequest(req CreateStaffRequest) (cashdesk.Staff, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return cashdesk.Staff{}, errors.New("id is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return cashdesk.Staff{}, errors.New("name is required")
	}
	role := cashdesk.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = cashdesk.RoleStaff
	}
	if role != cashdesk.RoleStaff && role != cashdesk.RoleManager {
		return cashdesk.Staff{}, errors.New("role must be staff or manager")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return cashdesk.Staff{ID: cashdesk.StaffID(id), Name: name, Role: role, Active: active}, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
