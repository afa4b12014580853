/*
store.go - Persistence interface for quants, moves, and holds

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  The ledger is append-only by construction: the interface exposes
  AppendMove and read methods, nothing else. There is no way to update
  or delete a Move through this interface. SetQuantity exists solely
  for the Recalculate repair path and touches the cache, not history.

ATOMICITY:
  AppendMove persists the Move AND increments the target Quant's cached
  quantity in one atomic step: both effects are visible together or not
  at all. This is the transactional unit every mutation builds on.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL)
  - stock/store:  in-memory, for tests and development

SEE ALSO:
  - movements.go, holds.go, planning.go: Engine operations on Store
*/
package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

// QuantFilter selects quantity cache records. Nil pointer fields mean
// "any"; a pointer to the empty string matches the unspecified position.
type QuantFilter struct {
	Product       string  // "" = all products
	Position      *string // nil = all positions
	Batch         *string // nil = all batches
	PhysicalOnly  bool    // only records with no target date
	IncludeFuture bool    // include forecast records (target date in the future)
	IncludeEmpty  bool    // include records at zero quantity
}

// HoldFilter selects reservations. ActiveAt, when set, applies the
// derived activity predicate at that instant — this is how every read
// path excludes expired-but-not-yet-swept holds.
type HoldFilter struct {
	Product    string
	TargetDate *time.Time // day-granular match
	Mode       HoldMode   // "" = any mode
	QuantID    string     // "" = any linked record
	Position   *string    // restrict to holds whose linked quant sits at this position
	Statuses   []HoldStatus
	ActiveAt   *time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store handles persistence of quants, the move ledger, and holds.
// IMPORTANT: the Move ledger is APPEND-ONLY. Corrections are new Moves
// with inverse delta.
type Store interface {
	// --- Quants ---

	// GetQuant returns the record by ID, or nil if absent.
	GetQuant(ctx context.Context, id string) (*Quant, error)

	// FindQuant returns the record at the exact coordinate, or nil.
	FindQuant(ctx context.Context, coord Coordinate) (*Quant, error)

	// CreateQuant persists a new record. Fails if the coordinate is taken.
	CreateQuant(ctx context.Context, q *Quant) error

	// ListQuants returns records matching the filter, oldest first.
	ListQuants(ctx context.Context, f QuantFilter) ([]Quant, error)

	// SetQuantity overwrites the cached quantity. Recalculate repair
	// path ONLY — never part of normal mutation flow.
	SetQuantity(ctx context.Context, quantID string, qty decimal.Decimal) error

	// --- Ledger ---

	// AppendMove persists the move and bumps the target quant's cached
	// quantity by Delta, atomically. Assigns Seq. The ONLY write path
	// for quantities.
	AppendMove(ctx context.Context, m *Move) error

	// MovesForQuant returns the full history for a record in sequence order.
	MovesForQuant(ctx context.Context, quantID string) ([]Move, error)

	// --- Holds ---

	CreateHold(ctx context.Context, h *Hold) error

	// GetHold returns the hold by storage ID, or nil if absent.
	GetHold(ctx context.Context, id string) (*Hold, error)

	// UpdateHold persists status, resolution, link, and metadata changes.
	// Quantity and product are never rewritten.
	UpdateHold(ctx context.Context, h *Hold) error

	ListHolds(ctx context.Context, f HoldFilter) ([]Hold, error)

	// ExpiredHolds returns up to limit holds whose expiry has passed
	// but whose status is still pending/confirmed, oldest expiry first.
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error)
}

// TxStore wraps Store with transaction support. Mutating operations
// execute inside WithTx so a failed step rolls back the whole attempt.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. fn error = rollback.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SECONDARY ENTITY STORES
// =============================================================================

// PositionStore persists positions. Positions are setup-time entities;
// quants reference them by code only.
type PositionStore interface {
	SavePosition(ctx context.Context, p Position) error
	GetPosition(ctx context.Context, code string) (*Position, error)
	ListPositions(ctx context.Context) ([]Position, error)
}

// BatchStore persists lot metadata keyed by the code referenced from
// Quant.Batch.
type BatchStore interface {
	SaveBatch(ctx context.Context, b Batch) error
	GetBatch(ctx context.Context, code string) (*Batch, error)
	ListBatches(ctx context.Context, product string) ([]Batch, error)
}

// AlertStore persists min-stock alert thresholds.
type AlertStore interface {
	SaveAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, product string, activeOnly bool) ([]Alert, error)
	TouchAlert(ctx context.Context, id string, at time.Time) error
}
