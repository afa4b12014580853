/*
errors.go - Centralized error types for the stock engine

PURPOSE:
  All errors are typed outcomes naming a specific violated precondition,
  not generic failures. Callers branch on them with errors.Is/As, and
  the HTTP layer maps them to stable machine codes.

ERROR CATEGORIES:
  1. Precondition failures - business rules (insufficient quantity, ...)
  2. Integrity violations  - programming defects (ledger mutation)
  3. Store errors          - database-level failures (wrapped, not typed here)

USAGE:
  _, err := svc.Issue(ctx, req)
  if errors.Is(err, stock.ErrInsufficientQuantity) {
      var qe *stock.QuantityError
      errors.As(err, &qe)
      fmt.Println("only", qe.Available, "available")
  }

SEE ALSO:
  - movements.go, holds.go, planning.go: Where these are raised
  - api/handlers.go: HTTP mapping
*/
package stock

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientQuantity is returned when an issue exceeds the
	// record's effective (unheld) quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrInsufficientAvailable is returned when a hold request exceeds
	// policy-permitted availability and demand creation is disallowed.
	ErrInsufficientAvailable = errors.New("insufficient available")

	// ErrInvalidQuantity is returned when a quantity is zero or negative.
	ErrInvalidQuantity = errors.New("invalid quantity: must be positive")

	// ErrInvalidTargetDate is returned when Plan is given a target date
	// that is not in the future.
	ErrInvalidTargetDate = errors.New("invalid target date: must be in the future")

	// ErrReasonRequired is returned when a correction has an empty reason.
	ErrReasonRequired = errors.New("reason is required")

	// ErrInvalidStatus is returned when a hold transition is attempted
	// from a state that does not permit it.
	ErrInvalidStatus = errors.New("invalid status for this operation")

	// ErrHoldIsDemand is returned when fulfill is attempted on an
	// unlinked (demand-mode) hold.
	ErrHoldIsDemand = errors.New("hold is demand (no linked stock)")

	// ErrInvalidHold is returned when a hold ID is malformed or unknown.
	ErrInvalidHold = errors.New("invalid hold or hold not found")

	// ErrQuantNotFound is returned when an operation needs an existing
	// record (replan, realize) and none exists at the coordinate.
	ErrQuantNotFound = errors.New("quant not found")

	// ErrUnknownSKU is returned when SKU validation is enforced and the
	// catalog rejects the product identifier.
	ErrUnknownSKU = errors.New("unknown or inactive sku")

	// ErrLedgerImmutable indicates an attempted edit or delete of a
	// historical ledger entry. This is a programming defect, never a
	// recoverable business condition.
	ErrLedgerImmutable = errors.New("integrity: ledger entries are immutable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// QuantityError reports a shortfall between requested and available.
type QuantityError struct {
	Code      string // "INSUFFICIENT_QUANTITY" or "INSUFFICIENT_AVAILABLE"
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("%s: available %s, requested %s",
		e.Code, e.Available, e.Requested)
}

func (e *QuantityError) Unwrap() error {
	if e.Code == "INSUFFICIENT_AVAILABLE" {
		return ErrInsufficientAvailable
	}
	return ErrInsufficientQuantity
}

// StatusError reports a hold transition attempted from a wrong state.
type StatusError struct {
	HoldID   string
	Current  HoldStatus
	Expected []HoldStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid status %q for hold %s (expected %v)",
		e.Current, e.HoldID, e.Expected)
}

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }

// =============================================================================
// ERROR CODES - Stable machine codes for API consumers
// =============================================================================

// Code maps an engine error to its stable machine code. Unknown errors
// map to "INTERNAL".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientQuantity):
		return "INSUFFICIENT_QUANTITY"
	case errors.Is(err, ErrInsufficientAvailable):
		return "INSUFFICIENT_AVAILABLE"
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrInvalidTargetDate):
		return "INVALID_TARGET_DATE"
	case errors.Is(err, ErrReasonRequired):
		return "REASON_REQUIRED"
	case errors.Is(err, ErrInvalidStatus):
		return "INVALID_STATUS"
	case errors.Is(err, ErrHoldIsDemand):
		return "HOLD_IS_DEMAND"
	case errors.Is(err, ErrInvalidHold):
		return "INVALID_HOLD"
	case errors.Is(err, ErrQuantNotFound):
		return "QUANT_NOT_FOUND"
	case errors.Is(err, ErrUnknownSKU):
		return "UNKNOWN_SKU"
	default:
		return "INTERNAL"
	}
}

// IsClientError reports whether the error is a precondition failure
// caused by the caller (HTTP 4xx) rather than an internal fault.
func IsClientError(err error) bool {
	return Code(err) != "INTERNAL"
}
