/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a realistic
	day at the front desk. Each scenario registers the demo staff and then
	replays shifts, ledger entries and closes through the engine, so every
	handover, audit line and balance is produced the same way live traffic
	would produce it.

AVAILABLE SCENARIOS:

	handover-chain:    Ana hands her drawer to Bruno, Bruno closes to Marta
	pending-handover:  Bruno never shows up; the handover waits for a manager
	wallet-channels:   Card, mobile and bank activity next to the drawer

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register the demo staff (ana, bruno, carla, marta)
 3. Replay the scenario's operations through cashdesk.Desk

USAGE VIA API (when server.demo_scenarios is enabled, managers only):

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "handover-chain"}

USAGE VIA CLI:

	frontdesk seed handover-chain

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - cmd/server/seed.go: CLI entry point
  - handlers.go: Handler
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/frontdesk/cashdesk"
)

// ErrUnknownScenario is returned for an id not in Scenarios().
var ErrUnknownScenario = errors.New("unknown scenario")

// ScenarioStore is a staff directory that can be wiped.
type ScenarioStore interface {
	StaffDirectory
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, d *cashdesk.Desk) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "handover-chain",
			Name:        "Handover Chain",
			Description: "Ana closes 5 short and hands her drawer to Bruno, who claims it on open and closes to Marta",
		},
		load: loadHandoverChain,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pending-handover",
			Name:        "Pending Handover",
			Description: "Ana hands cash to Bruno, who never opens a shift; Carla has an unconfirmed entry",
		},
		load: loadPendingHandover,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "wallet-channels",
			Name:        "Wallet Channels",
			Description: "Card, mobile and bank entries next to the cash drawer, including a rejected one",
		},
		load: loadWalletChannels,
	},
}

var demoStaff = []cashdesk.Staff{
	{ID: "ana", Name: "Ana Souza", Role: cashdesk.RoleStaff, Active: true},
	{ID: "bruno", Name: "Bruno Lima", Role: cashdesk.RoleStaff, Active: true},
	{ID: "carla", Name: "Carla Reis", Role: cashdesk.RoleStaff, Active: true},
	{ID: "marta", Name: "Marta Alves", Role: cashdesk.RoleManager, Active: true},
}

// Scenarios lists the available demo scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	return out
}

// LoadScenario wipes st, registers the demo staff and replays scenario id
// through desk. desk must be built over the same backend as st.
func LoadScenario(ctx context.Context, desk *cashdesk.Desk, st ScenarioStore, id string) error {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	if err := st.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, s := range demoStaff {
		if err := st.SaveStaff(ctx, s); err != nil {
			return fmt.Errorf("save staff %s: %w", s.ID, err)
		}
	}
	if err := sc.load(ctx, desk); err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ScenarioHandler serves the demo scenario endpoints.
type ScenarioHandler struct {
	Desk  *cashdesk.Desk
	Store ScenarioStore

	mu      sync.Mutex
	current string
}

// ListScenarios returns available scenarios and the one currently loaded.
// GET /api/scenarios
func (h *ScenarioHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.current
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, ScenarioListResponse{Scenarios: Scenarios(), Current: current})
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *ScenarioHandler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = ""
	if err := LoadScenario(r.Context(), h.Desk, h.Store, req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeErrorCode(w, http.StatusBadRequest, "unknown_scenario", "Unknown scenario", err)
			return
		}
		writeDomainError(w, r, err)
		return
	}
	h.current = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadHandoverChain(ctx context.Context, d *cashdesk.Desk) error {
	ana, err := d.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "ana", Note: "morning"})
	if err != nil {
		return err
	}
	// Expected cash: 200 + 20 - 50 = 170. The card sale stays out of the drawer.
	if _, err := record(ctx, d, ana.Shift.ID, "marta", cashdesk.Income, "200", cashdesk.ChannelCash, true, "room 12 checkout"); err != nil {
		return err
	}
	if _, err := record(ctx, d, ana.Shift.ID, "marta", cashdesk.Income, "20", cashdesk.ChannelCash, true, "minibar"); err != nil {
		return err
	}
	if _, err := record(ctx, d, ana.Shift.ID, "marta", cashdesk.Expense, "50", cashdesk.ChannelCash, true, "laundry supplier"); err != nil {
		return err
	}
	if _, err := record(ctx, d, ana.Shift.ID, "ana", cashdesk.Income, "80", cashdesk.ChannelCard, false, "room 7 deposit"); err != nil {
		return err
	}
	if _, err := d.Shifts.CloseShift(ctx, cashdesk.CloseRequest{
		ShiftID:     ana.Shift.ID,
		CountedCash: decimal.NewFromInt(165),
		Recipient:   cashdesk.Recipient{NextWorkerID: "bruno"},
		Note:        "5 short, could not find it",
	}); err != nil {
		return err
	}

	bruno, err := d.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "bruno", Note: "afternoon"})
	if err != nil {
		return err
	}
	if _, err := record(ctx, d, bruno.Shift.ID, "marta", cashdesk.Income, "50", cashdesk.ChannelCash, true, "late checkout fee"); err != nil {
		return err
	}
	_, err = d.Shifts.CloseShift(ctx, cashdesk.CloseRequest{
		ShiftID:     bruno.Shift.ID,
		CountedCash: decimal.NewFromInt(215),
		Recipient:   cashdesk.Recipient{ManagerID: "marta"},
	})
	return err
}

func loadPendingHandover(ctx context.Context, d *cashdesk.Desk) error {
	ana, err := d.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "ana"})
	if err != nil {
		return err
	}
	if _, err := record(ctx, d, ana.Shift.ID, "marta", cashdesk.Income, "120", cashdesk.ChannelCash, true, "room 3 checkout"); err != nil {
		return err
	}
	if _, err := d.Shifts.CloseShift(ctx, cashdesk.CloseRequest{
		ShiftID:     ana.Shift.ID,
		CountedCash: decimal.NewFromInt(120),
		Recipient:   cashdesk.Recipient{NextWorkerID: "bruno"},
	}); err != nil {
		return err
	}

	carla, err := d.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "carla"})
	if err != nil {
		return err
	}
	_, err = record(ctx, d, carla.Shift.ID, "carla", cashdesk.Income, "40", cashdesk.ChannelCash, false, "parking")
	return err
}

func loadWalletChannels(ctx context.Context, d *cashdesk.Desk) error {
	if _, err := d.Ledger.RecordEntry(ctx, cashdesk.RecordRequest{
		Direction:   cashdesk.Income,
		Amount:      decimal.NewFromInt(1500),
		Channel:     cashdesk.ChannelBank,
		Source:      cashdesk.SourceTransfer,
		Description: "agency prepayment",
		CreatedBy:   "marta",
		Confirmed:   true,
	}); err != nil {
		return err
	}

	ana, err := d.Shifts.OpenShift(ctx, cashdesk.OpenRequest{WorkerID: "ana"})
	if err != nil {
		return err
	}
	id := ana.Shift.ID
	if _, err := record(ctx, d, id, "marta", cashdesk.Income, "60", cashdesk.ChannelCash, true, "breakfast"); err != nil {
		return err
	}
	if _, err := record(ctx, d, id, "marta", cashdesk.Income, "90", cashdesk.ChannelCard, true, "room 5"); err != nil {
		return err
	}
	if _, err := record(ctx, d, id, "ana", cashdesk.Income, "45", cashdesk.ChannelMobile, false, "room 9"); err != nil {
		return err
	}
	typo, err := record(ctx, d, id, "ana", cashdesk.Income, "250", cashdesk.ChannelCash, false, "typo, should be 25")
	if err != nil {
		return err
	}
	_, err = d.Ledger.RejectEntry(ctx, typo.ID, "marta")
	return err
}

func record(ctx context.Context, d *cashdesk.Desk, shift cashdesk.ShiftID, by cashdesk.StaffID, dir cashdesk.Direction, amount string, ch cashdesk.Channel, confirmed bool, desc string) (cashdesk.LedgerEntry, error) {
	return d.Ledger.RecordEntry(ctx, cashdesk.RecordRequest{
		Direction:   dir,
		Amount:      decimal.RequireFromString(amount),
		Channel:     ch,
		Source:      cashdesk.SourceManual,
		Description: desc,
		CreatedBy:   by,
		ShiftID:     shift,
		Confirmed:   confirmed,
	})
}
