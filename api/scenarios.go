/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates positions, stock
	records, holds, and plans that demonstrate specific features.

AVAILABLE SCENARIOS:

	bakery-morning:   Fresh stock at two positions, a confirmed hold
	production-week:  Plans for the coming days with holds against them
	low-stock:        Near-empty stock with an armed min-stock alert

HOW SCENARIOS WORK:
 1. Create positions (if a position store is wired)
 2. Receive physical stock / plan future production
 3. Place holds to show committed vs available
 4. Optionally arm alerts

	Scenarios seed additively into the current store. They do not reset
	existing data; point the server at a fresh database for a clean demo.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "bakery-morning"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: The endpoints these seeders exercise
  - stock/: The operations used for seeding
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "bakery-morning",
		Name:        "Bakery Morning",
		Description: "Fresh croissants and bread at two positions, one confirmed hold",
		Category:    "stock",
	},
	{
		ID:          "production-week",
		Name:        "Production Week",
		Description: "Planned production for the coming days with holds against plans",
		Category:    "planning",
	},
	{
		ID:          "low-stock",
		Name:        "Low Stock",
		Description: "Near-empty stock with an armed min-stock alert",
		Category:    "alerts",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the selected scenario into the store.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "bakery-morning":
		err = h.loadBakeryMorningScenario(ctx)
	case "production-week":
		err = h.loadProductionWeekScenario(ctx)
	case "low-stock":
		err = h.loadLowStockScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadBakeryMorningScenario(ctx context.Context) error {
	if err := h.seedPositions(ctx); err != nil {
		return err
	}

	// Morning delivery into the display and the back room
	if _, err := h.Svc.Receive(ctx, stock.ReceiveRequest{
		Quantity: decimal.NewFromInt(40),
		Product:  "croissant",
		Position: "vitrine",
		Reason:   "morning production",
		Actor:    "demo",
	}); err != nil {
		return err
	}
	if _, err := h.Svc.Receive(ctx, stock.ReceiveRequest{
		Quantity: decimal.NewFromInt(60),
		Product:  "croissant",
		Position: "reserve",
		Reason:   "morning production",
		Actor:    "demo",
	}); err != nil {
		return err
	}
	if _, err := h.Svc.Receive(ctx, stock.ReceiveRequest{
		Quantity: decimal.NewFromInt(25),
		Product:  "pain-de-campagne",
		Position: "vitrine",
		Batch:    "LOT-" + time.Now().UTC().Format("20060102"),
		Reason:   "morning production",
		Actor:    "demo",
	}); err != nil {
		return err
	}

	// A customer order, already confirmed at checkout
	holdID, err := h.Svc.Hold(ctx, stock.HoldRequest{
		Quantity: decimal.NewFromInt(12),
		Product:  "croissant",
		Purpose:  "order:" + uuid.NewString()[:8],
	})
	if err != nil {
		return err
	}
	_, err = h.Svc.Confirm(ctx, holdID)
	return err
}

func (h *Handler) loadProductionWeekScenario(ctx context.Context) error {
	if err := h.seedPositions(ctx); err != nil {
		return err
	}

	// Plans for the next three days
	for day := 1; day <= 3; day++ {
		target := time.Now().UTC().AddDate(0, 0, day)
		if _, err := h.Svc.Plan(ctx, stock.PlanRequest{
			Quantity:   decimal.NewFromInt(80),
			Product:    "croissant",
			TargetDate: target,
			Actor:      "demo",
		}); err != nil {
			return err
		}
	}

	// A wholesale order reserving against tomorrow's plan
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	_, err := h.Svc.Hold(ctx, stock.HoldRequest{
		Quantity:   decimal.NewFromInt(50),
		Product:    "croissant",
		TargetDate: &tomorrow,
		Purpose:    "wholesale:cafe-du-coin",
	})
	return err
}

func (h *Handler) loadLowStockScenario(ctx context.Context) error {
	if err := h.seedPositions(ctx); err != nil {
		return err
	}

	if _, err := h.Svc.Receive(ctx, stock.ReceiveRequest{
		Quantity: decimal.NewFromInt(3),
		Product:  "baguette",
		Position: "vitrine",
		Reason:   "end of day remainder",
		Actor:    "demo",
	}); err != nil {
		return err
	}

	if h.Alerts == nil {
		return nil
	}
	return h.Alerts.SaveAlert(ctx, &stock.Alert{
		ID:          uuid.NewString(),
		Product:     "baguette",
		MinQuantity: decimal.NewFromInt(10),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	})
}

// seedPositions registers the demo positions, idempotently.
func (h *Handler) seedPositions(ctx context.Context) error {
	if h.Positions == nil {
		return nil
	}
	for _, p := range []stock.Position{
		{Code: "vitrine", Name: "Display case", Kind: stock.PositionPhysical, IsSaleable: true, IsDefault: true},
		{Code: "reserve", Name: "Back room", Kind: stock.PositionPhysical, IsSaleable: false},
		{Code: "pertes", Name: "Losses", Kind: stock.PositionVirtual},
	} {
		p.CreatedAt = time.Now().UTC()
		if err := h.Positions.SavePosition(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
