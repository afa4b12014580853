/*
move.go - Immutable ledger of quantity changes

PURPOSE:
  The Move ledger is the source of truth for every quantity change.
  A Quant's cached quantity is always reproducible by replaying its
  Moves in creation order.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete. Ever.
  2. IMMUTABLE: once written, a Move cannot be modified. The Store
     interface exposes no mutation path; a store implementation that
     detects one must fail with ErrLedgerImmutable.
  3. ORDERED: Moves for a record are totally ordered by sequence.

CORRECTIONS:
  A wrong value is fixed by appending an inverse-sign Move, never by
  editing history. Both the original and the reversal remain visible.

SEE ALSO:
  - quant.go: The cache the ledger feeds
  - store.go: AppendMove contract (insert + cache bump, one atomic step)
*/
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Move is one immutable ledger entry: a signed delta against a Quant.
type Move struct {
	ID      string
	QuantID string

	// Seq is the store-assigned monotonic sequence. Replaying a
	// record's Moves ordered by Seq reproduces its cached quantity.
	Seq int64

	// Delta: positive = entry, negative = exit.
	Delta decimal.Decimal

	// Reason is required. Free text: "morning production", "sale #123".
	Reason string

	// Reference is an optional external correlation key (order,
	// production run, hold ID).
	Reference string

	// Actor is who caused the change ("" = system).
	Actor string

	Metadata  map[string]string
	Timestamp time.Time
}

func (m *Move) String() string {
	sign := ""
	if m.Delta.Sign() > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%s | %s", sign, m.Delta, m.Reason)
}
