/*
handlers.go - HTTP API handlers for the stock engine

PURPOSE:
  Exposes the inventory engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Stock movements:
    POST   /api/stock/receive           Record a stock entry
    POST   /api/stock/issue             Record a stock exit
    POST   /api/stock/adjust            Set a record to an absolute quantity

  Quants:
    GET    /api/quants                  List quantity records
    GET    /api/quants/{id}             Get one record
    GET    /api/quants/{id}/moves       Full ledger for one record
    POST   /api/quants/{id}/recalculate Re-derive the cache from the ledger

  Holds:
    POST   /api/holds                   Create a hold
    GET    /api/holds                   List holds
    GET    /api/holds/{id}              Get one hold
    POST   /api/holds/{id}/confirm      PENDING -> CONFIRMED
    POST   /api/holds/{id}/release      -> RELEASED
    POST   /api/holds/{id}/fulfill      CONFIRMED -> FULFILLED (decrements stock)

  Planning:
    POST   /api/plans                   Plan future production
    POST   /api/plans/replan            Change a plan's quantity
    POST   /api/plans/realize           Convert a plan into physical stock

  Queries:
    GET    /api/products/{sku}/availability  on-hand/committed/available/demand

  Catalog:
    GET    /api/products                Search SKUs
    GET    /api/products/{sku}          SKU information

  Positions / Batches / Alerts:
    GET,POST /api/positions   GET /api/positions/{code}
    GET,POST /api/batches     GET /api/batches/{code}
    GET,POST /api/alerts      POST /api/alerts/check

  Admin:
    POST   /api/admin/sweep             Release expired holds now

ERROR HANDLING:
  Engine errors carry stable machine codes (stock.Code). The mapping to
  HTTP status is:
  - 400: malformed input (INVALID_QUANTITY, INVALID_TARGET_DATE, ...)
  - 404: missing records (QUANT_NOT_FOUND, INVALID_HOLD, UNKNOWN_SKU)
  - 409: precondition conflicts (INSUFFICIENT_*, INVALID_STATUS, HOLD_IS_DEMAND)
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/stock-engine/catalog"
	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Svc *stock.Service
	Log *zap.Logger

	// Secondary entity stores. The SQLite store implements all three;
	// any may be nil, disabling its endpoints with 501.
	Positions stock.PositionStore
	Batches   stock.BatchStore
	Alerts    stock.AlertStore

	// Catalog powers the product lookup/search endpoints. Optional.
	Catalog catalog.Validator
}

// NewHandler creates a new handler around the engine service.
func NewHandler(svc *stock.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Svc: svc, Log: log}
}

// =============================================================================
// STOCK MOVEMENT HANDLERS
// =============================================================================

// Receive records a stock entry.
// POST /api/stock/receive
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	targetDate, err := parseDatePtr(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date", err)
		return
	}

	quant, err := h.Svc.Receive(r.Context(), stock.ReceiveRequest{
		Quantity:   qty,
		Product:    req.Product,
		Position:   req.Position,
		TargetDate: targetDate,
		Batch:      req.Batch,
		Reference:  req.Reference,
		Actor:      req.Actor,
		Reason:     req.Reason,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeEngineError(w, "Receive failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toQuantDTO(quant))
}

// Issue records a stock exit against an existing record.
// POST /api/stock/issue
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}

	move, err := h.Svc.Issue(r.Context(), stock.IssueRequest{
		Quantity:  qty,
		QuantID:   req.QuantID,
		Reference: req.Reference,
		Actor:     req.Actor,
		Reason:    req.Reason,
	})
	if err != nil {
		writeEngineError(w, "Issue failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMoveDTO(move))
}

// Adjust sets a record to a new absolute quantity.
// POST /api/stock/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.NewQuantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_quantity", err)
		return
	}

	move, err := h.Svc.Adjust(r.Context(), stock.AdjustRequest{
		QuantID:     req.QuantID,
		NewQuantity: qty,
		Reason:      req.Reason,
		Actor:       req.Actor,
	})
	if err != nil {
		writeEngineError(w, "Adjust failed", err)
		return
	}
	if move == nil {
		// Already at the requested quantity, nothing written.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusCreated, toMoveDTO(move))
}

// =============================================================================
// QUANT HANDLERS
// =============================================================================

// ListQuants returns quantity records matching the query filters.
// GET /api/quants?product=&position=&batch=&include_future=&include_empty=
func (h *Handler) ListQuants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stock.QuantFilter{
		Product:       q.Get("product"),
		IncludeFuture: boolParam(q.Get("include_future")),
		IncludeEmpty:  boolParam(q.Get("include_empty")),
	}
	if q.Has("position") {
		pos := q.Get("position")
		filter.Position = &pos
	}
	if q.Has("batch") {
		batch := q.Get("batch")
		filter.Batch = &batch
	}

	quants, err := h.Svc.ListQuants(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list quants", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuantDTOs(quants))
}

// GetQuant returns one quantity record.
// GET /api/quants/{id}
func (h *Handler) GetQuant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	quant, err := h.Svc.GetQuantByID(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get quant", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuantDTO(quant))
}

// QuantMoves returns the full ledger for one record, in sequence order.
// GET /api/quants/{id}/moves
func (h *Handler) QuantMoves(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	moves, err := h.Svc.History(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toMoveDTOs(moves))
}

// Recalculate re-derives one record's cached quantity from its ledger.
// POST /api/quants/{id}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	qty, err := h.Svc.Recalculate(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Recalculate failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{QuantID: id, Quantity: qty.String()})
}

// =============================================================================
// HOLD HANDLERS
// =============================================================================

// CreateHold creates a reservation.
// POST /api/holds
func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	targetDate, err := parseDatePtr(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date", err)
		return
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at", err)
			return
		}
		expiresAt = &t
	}

	holdID, err := h.Svc.Hold(r.Context(), stock.HoldRequest{
		Quantity:   qty,
		Product:    req.Product,
		TargetDate: targetDate,
		Purpose:    req.Purpose,
		ExpiresAt:  expiresAt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeEngineError(w, "Hold failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateHoldResponse{HoldID: holdID})
}

// ListHolds returns holds matching the query filters.
// GET /api/holds?product=&status=&mode=&quant_id=&target_date=&active=
func (h *Handler) ListHolds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stock.HoldFilter{
		Product: q.Get("product"),
		Mode:    stock.HoldMode(q.Get("mode")),
		QuantID: q.Get("quant_id"),
	}
	if s := q.Get("status"); s != "" {
		filter.Statuses = []stock.HoldStatus{stock.HoldStatus(s)}
	}
	if d := q.Get("target_date"); d != "" {
		target, err := parseDatePtr(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target_date", err)
			return
		}
		filter.TargetDate = target
	}
	if boolParam(q.Get("active")) {
		now := time.Now().UTC()
		filter.ActiveAt = &now
	}

	holds, err := h.Svc.ListHolds(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holds", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoldDTOs(holds))
}

// GetHold returns one hold by its public identifier.
// GET /api/holds/{id}
func (h *Handler) GetHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hold, err := h.Svc.GetHold(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get hold", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoldDTO(hold))
}

// ConfirmHold transitions a hold PENDING -> CONFIRMED.
// POST /api/holds/{id}/confirm
func (h *Handler) ConfirmHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hold, err := h.Svc.Confirm(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Confirm failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoldDTO(hold))
}

// ReleaseHold cancels a hold, freeing the blocked quantity.
// POST /api/holds/{id}/release
func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReleaseHoldRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	hold, err := h.Svc.Release(r.Context(), id, req.Reason)
	if err != nil {
		writeEngineError(w, "Release failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoldDTO(hold))
}

// FulfillHold delivers a confirmed hold, decrementing the linked stock.
// POST /api/holds/{id}/fulfill
func (h *Handler) FulfillHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req FulfillHoldRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	move, err := h.Svc.Fulfill(r.Context(), id, req.Reference, req.Actor)
	if err != nil {
		writeEngineError(w, "Fulfill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toMoveDTO(move))
}

// =============================================================================
// PLANNING HANDLERS
// =============================================================================

// Plan schedules future production.
// POST /api/plans
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date", err)
		return
	}

	quant, err := h.Svc.Plan(r.Context(), stock.PlanRequest{
		Quantity:   qty,
		Product:    req.Product,
		TargetDate: targetDate,
		Position:   req.Position,
		Reference:  req.Reference,
		Actor:      req.Actor,
		Reason:     req.Reason,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeEngineError(w, "Plan failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuantDTO(quant))
}

// Replan sets an existing plan to a new absolute quantity.
// POST /api/plans/replan
func (h *Handler) Replan(w http.ResponseWriter, r *http.Request) {
	var req ReplanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity", err)
		return
	}
	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date", err)
		return
	}

	quant, err := h.Svc.Replan(r.Context(), req.Product, targetDate, qty, req.Reason, req.Actor)
	if err != nil {
		writeEngineError(w, "Replan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuantDTO(quant))
}

// Realize converts a plan into physical stock, migrating active holds.
// POST /api/plans/realize
func (h *Handler) Realize(w http.ResponseWriter, r *http.Request) {
	var req RealizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qty, err := decimal.NewFromString(req.ActualQty)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid actual_qty", err)
		return
	}
	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date", err)
		return
	}

	quant, err := h.Svc.Realize(r.Context(), stock.RealizeRequest{
		Product:    req.Product,
		TargetDate: targetDate,
		ActualQty:  qty,
		ToPosition: req.ToPosition,
		Actor:      req.Actor,
		Reason:     req.Reason,
	})
	if err != nil {
		writeEngineError(w, "Realize failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuantDTO(quant))
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// Availability returns the full availability picture for one product.
// GET /api/products/{sku}/availability?date=&position=
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	ctx := r.Context()
	q := r.URL.Query()

	var targetDate *time.Time
	target := stock.Day(time.Now().UTC())
	if d := q.Get("date"); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		target = stock.Day(t)
		targetDate = &target
	}
	var position *string
	if q.Has("position") {
		pos := q.Get("position")
		position = &pos
	}

	onHand, err := h.Svc.OnHand(ctx, sku, targetDate, position)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Availability failed", err)
		return
	}
	committed, err := h.Svc.Committed(ctx, sku, targetDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Availability failed", err)
		return
	}
	available, err := h.Svc.Available(ctx, sku, targetDate, position)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Availability failed", err)
		return
	}
	demand, err := h.Svc.Demand(ctx, sku, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Availability failed", err)
		return
	}

	dto := AvailabilityDTO{
		Product:    sku,
		TargetDate: target.Format("2006-01-02"),
		OnHand:     onHand.String(),
		Committed:  committed.String(),
		Available:  available.String(),
		Demand:     demand.String(),
	}
	if position != nil {
		dto.Position = *position
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// SearchProducts finds SKUs by name or code.
// GET /api/products?q=&limit=&include_inactive=
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeError(w, http.StatusNotImplemented, "No catalog configured", nil)
		return
	}
	q := r.URL.Query()
	limit := 20
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	infos := h.Catalog.Search(q.Get("q"), limit, boolParam(q.Get("include_inactive")))
	dtos := make([]ProductDTO, len(infos))
	for i := range infos {
		dtos[i] = toProductDTO(&infos[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns catalog information for one SKU.
// GET /api/products/{sku}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeError(w, http.StatusNotImplemented, "No catalog configured", nil)
		return
	}
	sku := chi.URLParam(r, "sku")

	info := h.Catalog.Lookup(sku)
	if info == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(info))
}

// =============================================================================
// POSITION HANDLERS
// =============================================================================

// ListPositions returns all positions.
// GET /api/positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	if h.Positions == nil {
		writeError(w, http.StatusNotImplemented, "No position store configured", nil)
		return
	}
	positions, err := h.Positions.ListPositions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list positions", err)
		return
	}
	dtos := make([]PositionDTO, len(positions))
	for i := range positions {
		dtos[i] = toPositionDTO(&positions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePosition registers a position.
// POST /api/positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	if h.Positions == nil {
		writeError(w, http.StatusNotImplemented, "No position store configured", nil)
		return
	}
	var dto PositionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if dto.Code == "" {
		writeError(w, http.StatusBadRequest, "Position code is required", nil)
		return
	}
	kind := stock.PositionKind(dto.Kind)
	if kind == "" {
		kind = stock.PositionPhysical
	}

	p := stock.Position{
		Code:       dto.Code,
		Name:       dto.Name,
		Kind:       kind,
		IsSaleable: dto.IsSaleable,
		IsDefault:  dto.IsDefault,
		Metadata:   dto.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Positions.SavePosition(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save position", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionDTO(&p))
}

// GetPosition returns one position.
// GET /api/positions/{code}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	if h.Positions == nil {
		writeError(w, http.StatusNotImplemented, "No position store configured", nil)
		return
	}
	code := chi.URLParam(r, "code")

	p, err := h.Positions.GetPosition(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get position", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Position not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPositionDTO(p))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// ListBatches returns lot records, optionally for one product.
// GET /api/batches?product=
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	if h.Batches == nil {
		writeError(w, http.StatusNotImplemented, "No batch store configured", nil)
		return
	}
	batches, err := h.Batches.ListBatches(r.Context(), r.URL.Query().Get("product"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batches", err)
		return
	}
	dtos := make([]BatchDTO, len(batches))
	for i := range batches {
		dtos[i] = toBatchDTO(&batches[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBatch registers lot metadata.
// POST /api/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if h.Batches == nil {
		writeError(w, http.StatusNotImplemented, "No batch store configured", nil)
		return
	}
	var dto BatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if dto.Code == "" || dto.Product == "" {
		writeError(w, http.StatusBadRequest, "Batch code and product are required", nil)
		return
	}

	b := stock.Batch{
		Code:      dto.Code,
		Product:   dto.Product,
		Supplier:  dto.Supplier,
		Notes:     dto.Notes,
		CreatedAt: time.Now().UTC(),
	}
	var err error
	if b.ProductionDate, err = parseDatePtr(dto.ProductionDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid production_date", err)
		return
	}
	if b.ExpiryDate, err = parseDatePtr(dto.ExpiryDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expiry_date", err)
		return
	}

	if err := h.Batches.SaveBatch(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save batch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(&b))
}

// GetBatch returns one lot record.
// GET /api/batches/{code}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	if h.Batches == nil {
		writeError(w, http.StatusNotImplemented, "No batch store configured", nil)
		return
	}
	code := chi.URLParam(r, "code")

	b, err := h.Batches.GetBatch(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get batch", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns alert thresholds, optionally for one product.
// GET /api/alerts?product=&active=
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeError(w, http.StatusNotImplemented, "No alert store configured", nil)
		return
	}
	q := r.URL.Query()
	alerts, err := h.Alerts.ListAlerts(r.Context(), q.Get("product"), boolParam(q.Get("active")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err)
		return
	}
	dtos := make([]AlertDTO, len(alerts))
	for i := range alerts {
		dtos[i] = toAlertDTO(&alerts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAlert registers a min-stock threshold.
// POST /api/alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	if h.Alerts == nil {
		writeError(w, http.StatusNotImplemented, "No alert store configured", nil)
		return
	}
	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Product == "" {
		writeError(w, http.StatusBadRequest, "Product is required", nil)
		return
	}
	minQty, err := decimal.NewFromString(req.MinQuantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid min_quantity", err)
		return
	}

	a := stock.Alert{
		ID:          uuid.NewString(),
		Product:     req.Product,
		MinQuantity: minQty,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if req.Position != "" {
		a.Position = &req.Position
	}
	if err := h.Alerts.SaveAlert(r.Context(), &a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertDTO(&a))
}

// CheckAlerts evaluates active thresholds and returns the triggered ones.
// POST /api/alerts/check?product=
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	triggered, err := h.Svc.CheckAlerts(r.Context(), r.URL.Query().Get("product"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Alert check failed", err)
		return
	}
	dtos := make([]TriggeredAlertDTO, len(triggered))
	for i := range triggered {
		dtos[i] = TriggeredAlertDTO{
			Alert:     toAlertDTO(&triggered[i].Alert),
			Available: triggered[i].Available.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Sweep releases expired holds immediately, outside the scheduler cadence.
// POST /api/admin/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	released, err := h.Svc.ReleaseExpired(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Released: released})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps an engine error to HTTP via its machine code.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	code := stock.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "INVALID_QUANTITY", "INVALID_TARGET_DATE", "REASON_REQUIRED":
		status = http.StatusBadRequest
	case "QUANT_NOT_FOUND", "INVALID_HOLD", "UNKNOWN_SKU":
		status = http.StatusNotFound
	case "INSUFFICIENT_QUANTITY", "INSUFFICIENT_AVAILABLE", "INVALID_STATUS", "HOLD_IS_DEMAND":
		status = http.StatusConflict
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}

	// Shortfall errors carry the numbers; surface them for clients.
	var qe *stock.QuantityError
	if errors.As(err, &qe) {
		resp.Details = map[string]string{
			"available": qe.Available.String(),
			"requested": qe.Requested.String(),
		}
	}
	writeJSON(w, status, resp)
}

// parseDatePtr parses "2006-01-02", "" meaning nil.
func parseDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolParam(s string) bool {
	return s == "1" || s == "true" || s == "yes"
}
