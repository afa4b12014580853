/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

QUANTITIES AND DATES:
  Quantities travel as JSON strings ("12.5") to preserve decimal
  precision end to end. Dates are "2006-01-02"; timestamps are RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - stock/: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/warp/stock-engine/catalog"
	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// QUANT
// =============================================================================

// QuantDTO represents one quantity record in API responses.
type QuantDTO struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	Position   string            `json:"position,omitempty"`
	TargetDate string            `json:"target_date,omitempty"`
	Batch      string            `json:"batch,omitempty"`
	Quantity   string            `json:"quantity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

// ReceiveRequest is the request body for a stock entry.
type ReceiveRequest struct {
	Quantity   string            `json:"quantity"`
	Product    string            `json:"product"`
	Position   string            `json:"position,omitempty"`
	TargetDate string            `json:"target_date,omitempty"`
	Batch      string            `json:"batch,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IssueRequest is the request body for a stock exit.
type IssueRequest struct {
	Quantity  string `json:"quantity"`
	QuantID   string `json:"quant_id"`
	Reference string `json:"reference,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// AdjustRequest sets a record to a new absolute quantity.
type AdjustRequest struct {
	QuantID     string `json:"quant_id"`
	NewQuantity string `json:"new_quantity"`
	Reason      string `json:"reason"`
	Actor       string `json:"actor,omitempty"`
}

// RecalculateResponse reports the ledger-derived quantity after repair.
type RecalculateResponse struct {
	QuantID  string `json:"quant_id"`
	Quantity string `json:"quantity"`
}

// =============================================================================
// MOVES
// =============================================================================

// MoveDTO represents one immutable ledger entry.
type MoveDTO struct {
	ID        string            `json:"id"`
	QuantID   string            `json:"quant_id"`
	Seq       int64             `json:"seq"`
	Delta     string            `json:"delta"`
	Reason    string            `json:"reason"`
	Reference string            `json:"reference,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// =============================================================================
// HOLDS
// =============================================================================

// HoldDTO represents a reservation in API responses. The ID is the
// public "hold:{id}" form accepted by the lifecycle endpoints.
type HoldDTO struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	Mode       string            `json:"mode"`
	QuantID    string            `json:"quant_id,omitempty"`
	Quantity   string            `json:"quantity"`
	TargetDate string            `json:"target_date"`
	Status     string            `json:"status"`
	Purpose    string            `json:"purpose,omitempty"`
	ExpiresAt  string            `json:"expires_at,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
	ResolvedAt string            `json:"resolved_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreateHoldRequest is the request body for a new hold.
type CreateHoldRequest struct {
	Quantity   string            `json:"quantity"`
	Product    string            `json:"product"`
	TargetDate string            `json:"target_date,omitempty"` // "" = today
	Purpose    string            `json:"purpose,omitempty"`
	ExpiresAt  string            `json:"expires_at,omitempty"` // RFC3339; "" = default TTL
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreateHoldResponse returns the public hold identifier.
type CreateHoldResponse struct {
	HoldID string `json:"hold_id"`
}

// ReleaseHoldRequest carries the optional release reason.
type ReleaseHoldRequest struct {
	Reason string `json:"reason,omitempty"`
}

// FulfillHoldRequest carries the delivery correlation data.
type FulfillHoldRequest struct {
	Reference string `json:"reference,omitempty"`
	Actor     string `json:"actor,omitempty"`
}

// SweepResponse reports how many expired holds a sweep released.
type SweepResponse struct {
	Released int `json:"released"`
}

// =============================================================================
// PLANNING
// =============================================================================

// PlanRequest schedules future production.
type PlanRequest struct {
	Quantity   string            `json:"quantity"`
	Product    string            `json:"product"`
	TargetDate string            `json:"target_date"`
	Position   string            `json:"position,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ReplanRequest sets an existing plan to a new absolute quantity.
type ReplanRequest struct {
	Product    string `json:"product"`
	TargetDate string `json:"target_date"`
	Quantity   string `json:"quantity"`
	Reason     string `json:"reason"`
	Actor      string `json:"actor,omitempty"`
}

// RealizeRequest converts a plan into physical stock.
type RealizeRequest struct {
	Product    string `json:"product"`
	TargetDate string `json:"target_date"`
	ActualQty  string `json:"actual_qty"`
	ToPosition string `json:"to_position,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// AvailabilityDTO is the full availability picture for one product at
// one target date.
type AvailabilityDTO struct {
	Product    string `json:"product"`
	TargetDate string `json:"target_date"`
	Position   string `json:"position,omitempty"`
	OnHand     string `json:"on_hand"`
	Committed  string `json:"committed"`
	Available  string `json:"available"`
	Demand     string `json:"demand"`
}

// =============================================================================
// SECONDARY ENTITIES
// =============================================================================

// PositionDTO represents a stock position.
type PositionDTO struct {
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	IsSaleable bool              `json:"is_saleable"`
	IsDefault  bool              `json:"is_default"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
}

// BatchDTO represents lot metadata.
type BatchDTO struct {
	Code           string `json:"code"`
	Product        string `json:"product"`
	ProductionDate string `json:"production_date,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	Supplier       string `json:"supplier,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// AlertDTO represents a min-stock alert threshold.
type AlertDTO struct {
	ID              string `json:"id"`
	Product         string `json:"product"`
	Position        string `json:"position,omitempty"`
	MinQuantity     string `json:"min_quantity"`
	IsActive        bool   `json:"is_active"`
	LastTriggeredAt string `json:"last_triggered_at,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateAlertRequest configures a min-stock threshold.
type CreateAlertRequest struct {
	Product     string `json:"product"`
	Position    string `json:"position,omitempty"` // "" = all positions
	MinQuantity string `json:"min_quantity"`
}

// TriggeredAlertDTO pairs a fired alert with the availability that
// fired it.
type TriggeredAlertDTO struct {
	Alert     AlertDTO `json:"alert"`
	Available string   `json:"available"`
}

// ProductDTO represents catalog information for one SKU.
type ProductDTO struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	Unit        string `json:"unit,omitempty"`
	Category    string `json:"category,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error envelope. Code carries the stable
// machine code from the engine (INSUFFICIENT_AVAILABLE, ...) so clients
// can branch without parsing messages.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toQuantDTO(q *stock.Quant) QuantDTO {
	dto := QuantDTO{
		ID:        q.ID,
		Product:   q.Product,
		Position:  q.Position,
		Batch:     q.Batch,
		Quantity:  q.Quantity.String(),
		Metadata:  q.Metadata,
		CreatedAt: q.CreatedAt.Format(time.RFC3339),
		UpdatedAt: q.UpdatedAt.Format(time.RFC3339),
	}
	if q.TargetDate != nil {
		dto.TargetDate = q.TargetDate.Format("2006-01-02")
	}
	return dto
}

func toQuantDTOs(quants []stock.Quant) []QuantDTO {
	dtos := make([]QuantDTO, len(quants))
	for i := range quants {
		dtos[i] = toQuantDTO(&quants[i])
	}
	return dtos
}

func toMoveDTO(m *stock.Move) MoveDTO {
	return MoveDTO{
		ID:        m.ID,
		QuantID:   m.QuantID,
		Seq:       m.Seq,
		Delta:     m.Delta.String(),
		Reason:    m.Reason,
		Reference: m.Reference,
		Actor:     m.Actor,
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp.Format(time.RFC3339),
	}
}

func toMoveDTOs(moves []stock.Move) []MoveDTO {
	dtos := make([]MoveDTO, len(moves))
	for i := range moves {
		dtos[i] = toMoveDTO(&moves[i])
	}
	return dtos
}

func toHoldDTO(h *stock.Hold) HoldDTO {
	dto := HoldDTO{
		ID:         stock.FormatHoldID(h.ID),
		Product:    h.Product,
		Mode:       string(h.Mode),
		QuantID:    h.QuantID,
		Quantity:   h.Quantity.String(),
		TargetDate: h.TargetDate.Format("2006-01-02"),
		Status:     string(h.Status),
		Purpose:    h.Purpose,
		CreatedAt:  h.CreatedAt.Format(time.RFC3339),
		Metadata:   h.Metadata,
	}
	if h.ExpiresAt != nil {
		dto.ExpiresAt = h.ExpiresAt.Format(time.RFC3339)
	}
	if h.ResolvedAt != nil {
		dto.ResolvedAt = h.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

func toHoldDTOs(holds []stock.Hold) []HoldDTO {
	dtos := make([]HoldDTO, len(holds))
	for i := range holds {
		dtos[i] = toHoldDTO(&holds[i])
	}
	return dtos
}

func toPositionDTO(p *stock.Position) PositionDTO {
	return PositionDTO{
		Code:       p.Code,
		Name:       p.Name,
		Kind:       string(p.Kind),
		IsSaleable: p.IsSaleable,
		IsDefault:  p.IsDefault,
		Metadata:   p.Metadata,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toBatchDTO(b *stock.Batch) BatchDTO {
	dto := BatchDTO{
		Code:      b.Code,
		Product:   b.Product,
		Supplier:  b.Supplier,
		Notes:     b.Notes,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
	if b.ProductionDate != nil {
		dto.ProductionDate = b.ProductionDate.Format("2006-01-02")
	}
	if b.ExpiryDate != nil {
		dto.ExpiryDate = b.ExpiryDate.Format("2006-01-02")
	}
	return dto
}

func toAlertDTO(a *stock.Alert) AlertDTO {
	dto := AlertDTO{
		ID:          a.ID,
		Product:     a.Product,
		MinQuantity: a.MinQuantity.String(),
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if a.Position != nil {
		dto.Position = *a.Position
	}
	if a.LastTriggeredAt != nil {
		dto.LastTriggeredAt = a.LastTriggeredAt.Format(time.RFC3339)
	}
	return dto
}

func toProductDTO(info *catalog.Info) ProductDTO {
	return ProductDTO{
		SKU:         info.SKU,
		Name:        info.Name,
		Description: info.Description,
		IsActive:    info.IsActive,
		Unit:        info.Unit,
		Category:    info.Category,
	}
}
