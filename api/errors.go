package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/warp/frontdesk/cashdesk"
)

// =============================================================================
// ERROR MAPPING - Engine error kinds to HTTP status + stable code
// =============================================================================

type errorKind struct {
	target error
	status int
	code   string
}

// Order matters: more specific kinds first.
var errorKinds = []errorKind{
	{cashdesk.ErrShiftAlreadyOpen, http.StatusConflict, "shift_already_open"},
	{cashdesk.ErrShiftNotOpen, http.StatusConflict, "shift_not_open"},
	{cashdesk.ErrHandoverAlreadyResolved, http.StatusConflict, "handover_already_resolved"},
	{cashdesk.ErrEntryAlreadySettled, http.StatusConflict, "entry_already_settled"},
	{cashdesk.ErrRecipientRequired, http.StatusBadRequest, "recipient_required"},
	{cashdesk.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{cashdesk.ErrInvalidEntry, http.StatusBadRequest, "invalid_entry"},
	{cashdesk.ErrRecipientNotManager, http.StatusUnprocessableEntity, "recipient_not_manager"},
	{cashdesk.ErrRecipientNotFound, http.StatusUnprocessableEntity, "recipient_not_found"},
	{cashdesk.ErrShiftNotFound, http.StatusNotFound, "shift_not_found"},
	{cashdesk.ErrHandoverNotFound, http.StatusNotFound, "handover_not_found"},
	{cashdesk.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
	{cashdesk.ErrStaffNotFound, http.StatusNotFound, "staff_not_found"},
	{cashdesk.ErrForbidden, http.StatusForbidden, "forbidden"},
	{cashdesk.ErrStoreBusy, http.StatusServiceUnavailable, "store_busy"},
}

// writeDomainError maps err to its status and code. Unknown errors are 500
// and logged; their details are not sent to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			resp := ErrorResponse{Error: k.target.Error(), Code: k.code, Details: err.Error()}
			var open *cashdesk.ShiftAlreadyOpenError
			if errors.As(err, &open) && open.ShiftID != "" {
				resp.Details = map[string]string{"open_shift_id": string(open.ShiftID)}
			}
			writeJSON(w, k.status, resp)
			return
		}
	}

	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error", nil)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, "", message, err)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
