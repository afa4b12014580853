/*
hold.go - Temporary quantity reservation

PURPOSE:
  A Hold blocks quantity for a caller (basket, order) until it is
  fulfilled or released. Holds come in two modes:

  1. RESERVATION (ModeReservation, QuantID set):
     Linked to an existing Quant; decrements its availability.

  2. DEMAND (ModeDemand, no QuantID):
     The caller wants quantity but no stock of any kind exists. Used
     for planning ("how many want this for Friday?"). Can never reach
     FULFILLED.

LIFECYCLE:

    PENDING --confirm()--> CONFIRMED --fulfill()--> FULFILLED
       |                       |
       +------release()--------+--------> RELEASED

  FULFILLED and RELEASED are terminal; transitions are monotone and
  never move backward. Holds are never deleted (audit retention).

ACTIVITY IS COMPUTED, NOT STORED:
  Active(now) is a derived predicate over (status, expires_at, now).
  Every consumer evaluates it at read time against the current clock;
  the periodic sweep only rewrites status for bookkeeping and has zero
  effect on any availability answer. A hold whose expiry just passed is
  inactive immediately, one tick before any sweep runs.

SEE ALSO:
  - holds.go: Lifecycle operations and the expiration sweep
  - queries.go: Committed/Demand/Available consumers of Active()
*/
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS & MODE
// =============================================================================

type HoldStatus string

const (
	HoldPending   HoldStatus = "pending"   // created, awaiting confirmation
	HoldConfirmed HoldStatus = "confirmed" // checkout started
	HoldFulfilled HoldStatus = "fulfilled" // delivered, stock decremented
	HoldReleased  HoldStatus = "released"  // cancelled or expired
)

// HoldMode is the tagged variant over "linked record present/absent".
// Modelling this as a tag (rather than a nullable QuantID alone) keeps
// the fulfill precondition a mode check instead of nil-field duck typing.
type HoldMode string

const (
	ModeReservation HoldMode = "reservation" // QuantID set
	ModeDemand      HoldMode = "demand"      // no linked stock
)

// =============================================================================
// HOLD
// =============================================================================

type Hold struct {
	ID      string
	Product string

	Mode HoldMode
	// QuantID is the linked record; set iff Mode == ModeReservation.
	// Realize migrates it to the physical record while the hold is
	// still active.
	QuantID string

	Quantity   decimal.Decimal
	TargetDate time.Time // day-granular; the date the caller wants it
	Status     HoldStatus

	// Purpose is an opaque correlation key supplied by the caller
	// (basket item, order line). Never interpreted by the engine.
	Purpose string

	// ExpiresAt: nil = never expires.
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	ResolvedAt *time.Time

	Metadata map[string]string
}

// IsDemand reports whether this hold has no linked stock.
func (h *Hold) IsDemand() bool { return h.Mode == ModeDemand }

// Active is the derived activity predicate:
//
//	status ∈ {pending, confirmed} AND (expires_at == nil OR expires_at >= now)
//
// This is THE definition of "currently blocking stock". It must be
// evaluated at query time; status alone is never trusted.
func (h *Hold) Active(now time.Time) bool {
	if h.Status != HoldPending && h.Status != HoldConfirmed {
		return false
	}
	if h.ExpiresAt == nil {
		return true
	}
	return !now.After(*h.ExpiresAt)
}

// Expired reports whether the expiry has passed, regardless of status.
func (h *Hold) Expired(now time.Time) bool {
	if h.ExpiresAt == nil {
		return false
	}
	return now.After(*h.ExpiresAt)
}

func (h *Hold) String() string {
	mode := "reservation"
	if h.IsDemand() {
		mode = "demand"
	}
	return fmt.Sprintf("%s[%s] %sx %s (%s)",
		mode, h.Status, h.Quantity, h.Product, h.TargetDate.Format(dateLayout))
}

// =============================================================================
// HOLD ID FORMAT
// =============================================================================

const holdIDPrefix = "hold:"

// FormatHoldID renders the public identifier for a hold.
func FormatHoldID(id string) string { return holdIDPrefix + id }

// ParseHoldID extracts the storage key from a public hold identifier.
func ParseHoldID(holdID string) (string, error) {
	if len(holdID) > len(holdIDPrefix) && holdID[:len(holdIDPrefix)] == holdIDPrefix {
		return holdID[len(holdIDPrefix):], nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidHold, holdID)
}
