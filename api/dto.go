/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal strings in responses ("540.00"). Requests accept
  either a JSON number or a string; parsing happens in the handlers so a
  malformed amount is reported as invalid_amount.

TIMES:
  Timestamps are RFC3339 UTC. Days are YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/frontdesk/cashdesk"
)

// =============================================================================
// REQUESTS
// =============================================================================

// AmountInput accepts 12.5 or "12.50" and keeps the raw text.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	*a = AmountInput(b)
	return nil
}

// Parse returns the amount, or an AmountError naming field.
func (a AmountInput) Parse(field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, &cashdesk.AmountError{Field: field, Value: string(a), Rule: "a number"}
	}
	return d, nil
}

// OpenShiftRequest opens a shift. WorkerID is only honored for managers.
type OpenShiftRequest struct {
	WorkerID  string `json:"worker_id,omitempty"`
	ShiftDate string `json:"shift_date,omitempty"`
	Note      string `json:"note,omitempty"`
}

// CloseShiftRequest closes a shift. Exactly one of ManagerID, NextWorkerID.
type CloseShiftRequest struct {
	CountedCash  AmountInput `json:"counted_cash"`
	ManagerID    string      `json:"manager_id,omitempty"`
	NextWorkerID string      `json:"next_worker_id,omitempty"`
	Note         string      `json:"note,omitempty"`
}

// RecordEntryRequest records a ledger entry.
type RecordEntryRequest struct {
	TxDate      string      `json:"tx_date,omitempty"`
	Direction   string      `json:"direction"`
	Amount      AmountInput `json:"amount"`
	Channel     string      `json:"channel"`
	Source      string      `json:"source_type,omitempty"`
	Description string      `json:"description,omitempty"`
	ShiftID     string      `json:"shift_id,omitempty"`
	Confirmed   bool        `json:"confirmed,omitempty"`
}

// ConfirmHandoverRequest is a manager's manual receipt.
type ConfirmHandoverRequest struct {
	ActualAmount AmountInput `json:"actual_amount"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// CreateStaffRequest registers a staff member.
type CreateStaffRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active *bool  `json:"active,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type StaffDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

type ShiftDTO struct {
	ID           string  `json:"id"`
	WorkerID     string  `json:"worker_id"`
	ShiftDate    string  `json:"shift_date"`
	Status       string  `json:"status"`
	OpeningCash  string  `json:"opening_cash"`
	ExpectedCash string  `json:"expected_cash"`
	CountedCash  string  `json:"counted_cash"`
	ClosingCash  string  `json:"closing_cash"`
	Difference   string  `json:"difference"`
	OpeningNote  string  `json:"opening_note,omitempty"`
	ClosingNote  string  `json:"closing_note,omitempty"`
	OpenedAt     string  `json:"opened_at"`
	ClosedAt     *string `json:"closed_at,omitempty"`
}

type HandoverDTO struct {
	ID          string  `json:"id"`
	FromShiftID string  `json:"from_shift_id"`
	Amount      string  `json:"amount"`
	TxDate      string  `json:"tx_date"`
	Note        string  `json:"note,omitempty"`
	CreatedBy   string  `json:"created_by"`
	ToManagerID string  `json:"to_manager_id,omitempty"`
	ToStaffID   string  `json:"to_staff_id,omitempty"`
	ToShiftID   string  `json:"to_shift_id,omitempty"`
	Status      string  `json:"status"`
	ReceivedBy  string  `json:"received_by,omitempty"`
	ReceivedAt  *string `json:"received_at,omitempty"`
}

type EntryDTO struct {
	ID          string  `json:"id"`
	TxDate      string  `json:"tx_date"`
	Direction   string  `json:"direction"`
	Amount      string  `json:"amount"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	Source      string  `json:"source_type"`
	ShiftID     string  `json:"shift_id,omitempty"`
	Description string  `json:"description,omitempty"`
	CreatedBy   string  `json:"created_by"`
	ConfirmedBy string  `json:"confirmed_by,omitempty"`
	ConfirmedAt *string `json:"confirmed_at,omitempty"`
}

// OpenShiftResponse surfaces the claimed handovers so the worker can
// acknowledge them.
type OpenShiftResponse struct {
	Shift            ShiftDTO      `json:"shift"`
	ClaimedAmount    string        `json:"claimed_amount"`
	ClaimedHandovers []HandoverDTO `json:"claimed_handovers"`
}

type CloseShiftResponse struct {
	Shift    ShiftDTO    `json:"shift"`
	Handover HandoverDTO `json:"handover"`
}

type ShiftSummaryDTO struct {
	ShiftID      string `json:"shift_id"`
	OpeningCash  string `json:"opening_cash"`
	NetIncome    string `json:"net_income"`
	NetExpense   string `json:"net_expense"`
	ExpectedCash string `json:"expected_cash"`
}

type ChannelBalanceDTO struct {
	Confirmed string `json:"confirmed"`
	Pending   string `json:"pending"`
}

type WalletDTO struct {
	Channels map[string]ChannelBalanceDTO `json:"channels"`
	Total    ChannelBalanceDTO            `json:"total"`
}

type DailySummaryDTO struct {
	WorkerID  string `json:"worker_id"`
	Day       string `json:"day"`
	Received  string `json:"received"`
	Delivered string `json:"delivered"`
	Net       string `json:"net"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ScenarioListResponse struct {
	Scenarios []ScenarioDTO `json:"scenarios"`
	Current   string        `json:"current,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func timeString(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timeString(*t)
	return &s
}

func toStaffDTO(s cashdesk.Staff) StaffDTO {
	return StaffDTO{ID: string(s.ID), Name: s.Name, Role: string(s.Role), Active: s.Active}
}

func toShiftDTO(s cashdesk.Shift) ShiftDTO {
	return ShiftDTO{
		ID:           string(s.ID),
		WorkerID:     string(s.WorkerID),
		ShiftDate:    s.ShiftDate.Format(cashdesk.DayLayout),
		Status:       string(s.Status),
		OpeningCash:  money(s.OpeningCash),
		ExpectedCash: money(s.ExpectedCash),
		CountedCash:  money(s.CountedCash),
		ClosingCash:  money(s.ClosingCash),
		Difference:   money(s.Difference),
		OpeningNote:  s.OpeningNote,
		ClosingNote:  s.ClosingNote,
		OpenedAt:     timeString(s.OpenedAt),
		ClosedAt:     timePtr(s.ClosedAt),
	}
}

func toHandoverDTO(h cashdesk.Handover) HandoverDTO {
	return HandoverDTO{
		ID:          string(h.ID),
		FromShiftID: string(h.FromShiftID),
		Amount:      money(h.Amount),
		TxDate:      timeString(h.TxDate),
		Note:        h.Note,
		CreatedBy:   string(h.CreatedBy),
		ToManagerID: string(h.ToManagerID),
		ToStaffID:   string(h.ToStaffID),
		ToShiftID:   string(h.ToShiftID),
		Status:      string(h.Status),
		ReceivedBy:  string(h.ReceivedBy),
		ReceivedAt:  timePtr(h.ReceivedAt),
	}
}

func toHandoverDTOs(hs []cashdesk.Handover) []HandoverDTO {
	out := make([]HandoverDTO, len(hs))
	for i, h := range hs {
		out[i] = toHandoverDTO(h)
	}
	return out
}

func toEntryDTO(e cashdesk.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		TxDate:      timeString(e.TxDate),
		Direction:   string(e.Direction),
		Amount:      money(e.Amount),
		Channel:     string(e.Channel),
		Status:      string(e.Status),
		Source:      string(e.Source),
		ShiftID:     string(e.ShiftID),
		Description: e.Description,
		CreatedBy:   string(e.CreatedBy),
		ConfirmedBy: string(e.ConfirmedBy),
		ConfirmedAt: timePtr(e.ConfirmedAt),
	}
}

func toEntryDTOs(es []cashdesk.LedgerEntry) []EntryDTO {
	out := make([]EntryDTO, len(es))
	for i, e := range es {
		out[i] = toEntryDTO(e)
	}
	return out
}

func toSummaryDTO(s cashdesk.ShiftSummary) ShiftSummaryDTO {
	return ShiftSummaryDTO{
		ShiftID:      string(s.ShiftID),
		OpeningCash:  money(s.OpeningCash),
		NetIncome:    money(s.NetIncome),
		NetExpense:   money(s.NetExpense),
		ExpectedCash: money(s.ExpectedCash),
	}
}

func toWalletDTO(b cashdesk.Balances) WalletDTO {
	out := WalletDTO{Channels: make(map[string]ChannelBalanceDTO, len(b))}
	for ch, cb := range b {
		out.Channels[string(ch)] = ChannelBalanceDTO{Confirmed: money(cb.Confirmed), Pending: money(cb.Pending)}
	}
	total := b.Total()
	out.Total = ChannelBalanceDTO{Confirmed: money(total.Confirmed), Pending: money(total.Pending)}
	return out
}

func toDailyDTO(d cashdesk.DailySummary) DailySummaryDTO {
	return DailySummaryDTO{
		WorkerID:  string(d.WorkerID),
		Day:       d.Day.Format(cashdesk.DayLayout),
		Received:  money(d.Received),
		Delivered: money(d.Delivered),
		Net:       money(d.Net),
	}
}
