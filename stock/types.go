/*
Package stock provides the core inventory accounting engine.

PURPOSE:
  This package contains the types and operations for tracking how much
  of a product exists, how much is reserved, and how much can still be
  promised to new demand — at every (product, position, target date,
  batch) coordinate, with a full audit trail of every change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Coordinate: The space-time key identifying one trackable quantity
  - Quant: A quantity cache record at one coordinate
  - Move: An immutable ledger entry recording a quantity change
  - Position/Batch: Secondary entities enriching coordinates

DESIGN PRINCIPLES:
  1. Immutability: Moves are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derived state: quantities and hold activity are computed, never
     trusted from stored flags alone
  4. Auditability: every change has a reason, reference, and actor

USAGE:
  svc := stock.NewService(store, stock.DefaultConfig(), logger)
  quant, err := svc.Receive(ctx, stock.ReceiveRequest{
      Quantity: decimal.NewFromInt(50),
      Product:  "croissant",
      Position: "vitrine",
      Reason:   "morning delivery",
  })

SEE ALSO:
  - quant.go, move.go, hold.go: Entity behavior
  - movements.go, holds.go, planning.go, queries.go: Operations
  - store.go: Persistence interface
*/
package stock

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COORDINATE - Space-time key for one trackable quantity
// =============================================================================

// Coordinate identifies one trackable quantity:
//
//	Product:    WHAT (SKU, always set)
//	Position:   WHERE ("" = unspecified position, still a concrete coordinate)
//	TargetDate: WHEN (nil = physical stock, set = planned production)
//	Batch:      WHICH lot ("" = no lot)
//
// At most one Quant exists per coordinate. A nil TargetDate or empty
// Position on a stored record is a concrete coordinate value, never a
// wildcard; wildcards exist only in query filters.
type Coordinate struct {
	Product    string
	Position   string
	TargetDate *time.Time
	Batch      string
}

// Key returns the canonical string form of the coordinate, used for
// uniqueness and per-coordinate locking.
func (c Coordinate) Key() string {
	date := ""
	if c.TargetDate != nil {
		date = c.TargetDate.Format(dateLayout)
	}
	return strings.Join([]string{c.Product, c.Position, date, c.Batch}, "|")
}

// IsFuture reports whether the coordinate represents planned production
// that does not physically exist yet.
func (c Coordinate) IsFuture(now time.Time) bool {
	if c.TargetDate == nil {
		return false
	}
	return c.TargetDate.After(Day(now))
}

func (c Coordinate) String() string {
	pos := c.Position
	if pos == "" {
		pos = "?"
	}
	s := fmt.Sprintf("%s [%s", c.Product, pos)
	if c.TargetDate != nil {
		s += "@" + c.TargetDate.Format(dateLayout)
	}
	if c.Batch != "" {
		s += " lot:" + c.Batch
	}
	return s + "]"
}

// =============================================================================
// DATES - Day granularity helpers
// =============================================================================

const dateLayout = "2006-01-02"

// Day truncates t to midnight UTC. Target dates are day-granular.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayPtr is a convenience for building coordinates and filters.
func DayPtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}

// SameDay reports whether a and b fall on the same UTC day, treating
// nil as "physical" (equal only to nil).
func SameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Day(*a).Equal(Day(*b))
}

// =============================================================================
// POSITION - Where stock exists
// =============================================================================

type PositionKind string

const (
	// PositionPhysical: a place where the product exists in the real
	// world. Test: "if I go there, will I find the product?" — yes.
	PositionPhysical PositionKind = "physical"

	// PositionVirtual: an accounting concept (losses, internal
	// consumption). The product does not physically exist there.
	PositionVirtual PositionKind = "virtual"
)

// Position is a stable entity created during system setup. Quants
// reference positions by code only.
type Position struct {
	Code       string
	Name       string
	Kind       PositionKind
	IsSaleable bool
	IsDefault  bool
	Metadata   map[string]string
	CreatedAt  time.Time
}

// =============================================================================
// BATCH - Lot metadata (secondary entity)
// =============================================================================

// Batch enriches a Quant's lot code with production/expiry dates and
// supplier. It is NOT consulted by availability: shelf-life math uses
// the product-level policy, not batch expiry.
type Batch struct {
	Code           string
	Product        string
	ProductionDate *time.Time
	ExpiryDate     *time.Time
	Supplier       string
	Notes          string
	CreatedAt      time.Time
}

// IsExpired reports whether the batch is past its expiry date.
func (b *Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return Day(now).After(Day(*b.ExpiryDate))
}

// =============================================================================
// QUANTITY HELPERS
// =============================================================================

// MustParseDecimal parses s, returning zero on error. For fixtures and
// scan paths where the value is known-good.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
