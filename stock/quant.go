/*
quant.go - Quantity cache record at one space-time coordinate

PURPOSE:
  A Quant holds the current summed quantity for one coordinate. The
  value is a cache of the Move ledger: reads are O(1), and the cache is
  independently recomputable from the ledger for audit and repair.

INVARIANTS:
  - At most one Quant per coordinate (store-enforced uniqueness)
  - Quantity == sum(delta of all Moves referencing this record); a Move
    append and its cache bump are one atomic step
  - Never deleted, even at zero quantity (audit retention)
  - Mutated only by ledger appends (and the Recalculate repair path)

SEE ALSO:
  - move.go: The ledger entries that feed the cache
  - movements.go: Receive/Issue/Adjust/Recalculate
*/
package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quant is the quantity cache record for one coordinate.
type Quant struct {
	ID string
	Coordinate

	// Quantity caches the ledger sum. Read it, never assign it outside
	// the store's append/recalculate paths.
	Quantity decimal.Decimal

	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns quantity minus the given held sum. The held sum is
// computed by the caller from active holds (see Service.heldAt).
func (q *Quant) Available(held decimal.Decimal) decimal.Decimal {
	return q.Quantity.Sub(held)
}

func (q *Quant) String() string {
	return q.Coordinate.String() + ": " + q.Quantity.String()
}
