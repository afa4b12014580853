/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Movement endpoints (receive, issue, adjust)
- Hold lifecycle over HTTP (create, confirm, fulfill, release)
- Availability reporting
- Engine error to HTTP status mapping
- Demo scenario loading
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-engine/catalog"
	"github.com/warp/stock-engine/stock"
	memstore "github.com/warp/stock-engine/stock/store"
)

// newTestRouter wires a handler around an in-memory store.
func newTestRouter(t *testing.T) (http.Handler, *stock.Service) {
	t.Helper()

	mem := memstore.NewTxMemory()
	svc := stock.NewService(mem, stock.DefaultConfig(), nil)
	svc.SetAlertStore(mem.Memory)

	h := NewHandler(svc, nil)
	h.Positions = mem.Memory
	h.Batches = mem.Memory
	h.Alerts = mem.Memory
	h.Catalog = catalog.Noop{}

	return NewRouter(h), svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func TestReceive_CreatesQuant(t *testing.T) {
	// GIVEN: An empty store
	router, _ := newTestRouter(t)

	// WHEN: Receiving 50 croissants into the display
	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "50",
		Product:  "croissant",
		Position: "vitrine",
		Reason:   "morning production",
	})

	// THEN: A record exists at the coordinate with the full quantity
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quant := decode[QuantDTO](t, rec)
	assert.Equal(t, "croissant", quant.Product)
	assert.Equal(t, "vitrine", quant.Position)
	assert.Equal(t, "50", quant.Quantity)
	assert.Empty(t, quant.TargetDate)
}

func TestReceive_InvalidQuantity(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "-5",
		Product:  "croissant",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_QUANTITY", resp.Code)
}

func TestIssue_DecrementsAndRejectsOverdraft(t *testing.T) {
	// GIVEN: 10 units on hand
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "10", Product: "baguette", Position: "vitrine",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	quant := decode[QuantDTO](t, rec)

	// WHEN: Issuing 4
	rec = doJSON(t, router, "POST", "/api/stock/issue", IssueRequest{
		Quantity: "4", QuantID: quant.ID, Reason: "sale",
	})

	// THEN: The move is recorded with a negative delta
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	move := decode[MoveDTO](t, rec)
	assert.Equal(t, "-4", move.Delta)

	// WHEN: Issuing more than remains
	rec = doJSON(t, router, "POST", "/api/stock/issue", IssueRequest{
		Quantity: "7", QuantID: quant.ID, Reason: "sale",
	})

	// THEN: 409 with the shortfall numbers
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_QUANTITY", resp.Code)
}

func TestAdjust_RequiresReason(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "10", Product: "baguette",
	})
	quant := decode[QuantDTO](t, rec)

	rec = doJSON(t, router, "POST", "/api/stock/adjust", AdjustRequest{
		QuantID: quant.ID, NewQuantity: "7",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "REASON_REQUIRED", resp.Code)
}

func TestRecalculate_ReturnsLedgerSum(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "30", Product: "croissant",
	})
	quant := decode[QuantDTO](t, rec)

	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/quants/%s/recalculate", quant.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RecalculateResponse](t, rec)
	assert.Equal(t, "30", resp.Quantity)
}

// =============================================================================
// HOLDS
// =============================================================================

func TestHoldLifecycle_CreateConfirmFulfill(t *testing.T) {
	// GIVEN: 20 units on hand
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "20", Product: "croissant", Position: "vitrine",
	})
	quant := decode[QuantDTO](t, rec)

	// WHEN: Creating and confirming a hold for 8
	rec = doJSON(t, router, "POST", "/api/holds", CreateHoldRequest{
		Quantity: "8", Product: "croissant", Purpose: "order:42",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CreateHoldResponse](t, rec)
	require.NotEmpty(t, created.HoldID)

	rec = doJSON(t, router, "POST", "/api/holds/"+created.HoldID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hold := decode[HoldDTO](t, rec)
	assert.Equal(t, "confirmed", hold.Status)

	// THEN: Availability reflects the commitment
	rec = doJSON(t, router, "GET", "/api/products/croissant/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[AvailabilityDTO](t, rec)
	assert.Equal(t, "20", avail.OnHand)
	assert.Equal(t, "8", avail.Committed)
	assert.Equal(t, "12", avail.Available)

	// WHEN: Fulfilling
	rec = doJSON(t, router, "POST", "/api/holds/"+created.HoldID+"/fulfill", FulfillHoldRequest{
		Reference: "delivery:42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	move := decode[MoveDTO](t, rec)
	assert.Equal(t, "-8", move.Delta)

	// THEN: The stock is decremented and nothing stays committed
	rec = doJSON(t, router, "GET", "/api/quants/"+quant.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", decode[QuantDTO](t, rec).Quantity)

	rec = doJSON(t, router, "GET", "/api/products/croissant/availability", nil)
	avail = decode[AvailabilityDTO](t, rec)
	assert.Equal(t, "0", avail.Committed)
}

func TestHold_InsufficientAvailable(t *testing.T) {
	// GIVEN: 5 on hand, default policy (no demand fallback)
	router, _ := newTestRouter(t)
	doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "5", Product: "croissant",
	})

	// WHEN: Asking for 9
	rec := doJSON(t, router, "POST", "/api/holds", CreateHoldRequest{
		Quantity: "9", Product: "croissant",
	})

	// THEN: 409 with the shortfall
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_AVAILABLE", resp.Code)
}

func TestFulfill_PendingHoldRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "10", Product: "croissant",
	})
	rec := doJSON(t, router, "POST", "/api/holds", CreateHoldRequest{
		Quantity: "3", Product: "croissant",
	})
	created := decode[CreateHoldResponse](t, rec)

	// Fulfill without confirming first
	rec = doJSON(t, router, "POST", "/api/holds/"+created.HoldID+"/fulfill", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_STATUS", resp.Code)
}

func TestRelease_FreesAvailability(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "10", Product: "croissant",
	})
	rec := doJSON(t, router, "POST", "/api/holds", CreateHoldRequest{
		Quantity: "6", Product: "croissant",
	})
	created := decode[CreateHoldResponse](t, rec)

	rec = doJSON(t, router, "POST", "/api/holds/"+created.HoldID+"/release", ReleaseHoldRequest{
		Reason: "customer cancelled",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hold := decode[HoldDTO](t, rec)
	assert.Equal(t, "released", hold.Status)
	assert.NotEmpty(t, hold.ResolvedAt)

	rec = doJSON(t, router, "GET", "/api/products/croissant/availability", nil)
	avail := decode[AvailabilityDTO](t, rec)
	assert.Equal(t, "10", avail.Available)
}

func TestGetHold_UnknownID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/holds/hold:nope", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_HOLD", resp.Code)
}

// =============================================================================
// PLANNING
// =============================================================================

func TestPlanRealize_OverHTTP(t *testing.T) {
	// GIVEN: A plan for tomorrow
	router, _ := newTestRouter(t)
	tomorrow := tomorrowDate()

	rec := doJSON(t, router, "POST", "/api/plans", PlanRequest{
		Quantity: "80", Product: "croissant", TargetDate: tomorrow,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[QuantDTO](t, rec)
	assert.Equal(t, tomorrow, plan.TargetDate)

	// WHEN: Replanning to 60 and realizing 55 into the display
	rec = doJSON(t, router, "POST", "/api/plans/replan", ReplanRequest{
		Product: "croissant", TargetDate: tomorrow, Quantity: "60", Reason: "oven capacity",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "60", decode[QuantDTO](t, rec).Quantity)

	rec = doJSON(t, router, "POST", "/api/plans/realize", RealizeRequest{
		Product: "croissant", TargetDate: tomorrow, ActualQty: "55", ToPosition: "vitrine",
	})

	// THEN: Physical stock holds the actual quantity
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	physical := decode[QuantDTO](t, rec)
	assert.Equal(t, "55", physical.Quantity)
	assert.Equal(t, "vitrine", physical.Position)
	assert.Empty(t, physical.TargetDate)
}

func TestPlan_PastDateRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/plans", PlanRequest{
		Quantity: "10", Product: "croissant", TargetDate: "2020-01-01",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_TARGET_DATE", resp.Code)
}

func TestRealize_NoPlan(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/plans/realize", RealizeRequest{
		Product: "croissant", TargetDate: tomorrowDate(), ActualQty: "10",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "QUANT_NOT_FOUND", resp.Code)
}

// =============================================================================
// SECONDARY ENTITIES
// =============================================================================

func TestPositions_CreateAndGet(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/positions", PositionDTO{
		Code: "vitrine", Name: "Display case", Kind: "physical", IsSaleable: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, "GET", "/api/positions/vitrine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pos := decode[PositionDTO](t, rec)
	assert.Equal(t, "Display case", pos.Name)
	assert.True(t, pos.IsSaleable)
}

func TestAlerts_CreateAndCheck(t *testing.T) {
	// GIVEN: 3 on hand, a threshold of 10
	router, _ := newTestRouter(t)
	doJSON(t, router, "POST", "/api/stock/receive", ReceiveRequest{
		Quantity: "3", Product: "baguette",
	})
	rec := doJSON(t, router, "POST", "/api/alerts", CreateAlertRequest{
		Product: "baguette", MinQuantity: "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Checking alerts
	rec = doJSON(t, router, "POST", "/api/alerts/check", nil)

	// THEN: The threshold fires with the observed availability
	require.Equal(t, http.StatusOK, rec.Code)
	triggered := decode[[]TriggeredAlertDTO](t, rec)
	require.Len(t, triggered, 1)
	assert.Equal(t, "baguette", triggered[0].Alert.Product)
	assert.Equal(t, "3", triggered[0].Available)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_BakeryMorning(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID: "bakery-morning",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Seeded stock is visible, with the confirmed hold committed
	rec = doJSON(t, router, "GET", "/api/products/croissant/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[AvailabilityDTO](t, rec)
	assert.Equal(t, "100", avail.OnHand)
	assert.Equal(t, "12", avail.Committed)
	assert.Equal(t, "88", avail.Available)
}

func TestLoadScenario_Unknown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID: "nope",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// tomorrowDate returns tomorrow's date in the wire format.
func tomorrowDate() string {
	return stock.Day(time.Now().UTC().AddDate(0, 0, 1)).Format("2006-01-02")
}
