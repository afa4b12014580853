/*
queries.go - Read-only availability queries

PURPOSE:
  The pure read path: on-hand, committed, demand, available. Side-effect
  free, no engine locks — reads observe a self-consistent snapshot and
  never block behind a pending mutation.

THE NUMBERS:
  on_hand   = sum of shelf-life-valid record quantities
  committed = sum of active hold quantities (both modes)
  demand    = sum of active unlinked hold quantities
  available = on_hand - committed (restricted to the queried scope)

  "Active" is the derived predicate evaluated against the clock at call
  time: a hold whose expiry just passed is excluded immediately,
  regardless of whether the sweep has run.

SEE ALSO:
  - shelflife.go: The validity filter applied to on-hand
  - hold.go: Active()
*/
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AVAILABILITY
// =============================================================================

// Available returns the quantity promisable to new demand:
// on-hand minus committed, for the product at the target date
// (nil = today), optionally restricted to one position.
func (s *Service) Available(ctx context.Context, product string, targetDate *time.Time, position *string) (decimal.Decimal, error) {
	now := s.now()
	target := Day(now)
	if targetDate != nil {
		target = Day(*targetDate)
	}
	return s.availableIn(ctx, s.store, product, target, position, now)
}

// availableIn is the store-parameterized form, so hold creation can
// compute availability inside its own transaction.
func (s *Service) availableIn(ctx context.Context, st Store, product string, target time.Time, position *string, now time.Time) (decimal.Decimal, error) {
	total, err := s.onHandIn(ctx, st, product, target, position)
	if err != nil {
		return decimal.Zero, err
	}

	held, err := s.committedIn(ctx, st, product, target, position, now)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Sub(held), nil
}

// OnHand returns the total shelf-life-valid cached quantity for the
// product at the target date (nil = today), optionally restricted to
// one position.
func (s *Service) OnHand(ctx context.Context, product string, targetDate *time.Time, position *string) (decimal.Decimal, error) {
	target := Day(s.now())
	if targetDate != nil {
		target = Day(*targetDate)
	}
	return s.onHandIn(ctx, s.store, product, target, position)
}

func (s *Service) onHandIn(ctx context.Context, st Store, product string, target time.Time, position *string) (decimal.Decimal, error) {
	quants, err := st.ListQuants(ctx, QuantFilter{
		Product:       product,
		Position:      position,
		IncludeFuture: true,
		IncludeEmpty:  true,
	})
	if err != nil {
		return decimal.Zero, err
	}
	quants = FilterValid(quants, s.policyFor(product), target)

	total := decimal.Zero
	for i := range quants {
		total = total.Add(quants[i].Quantity)
	}
	return total, nil
}

// Committed returns the sum of active hold quantities for the product
// at the target date (nil = today), both reservation and demand mode.
func (s *Service) Committed(ctx context.Context, product string, targetDate *time.Time) (decimal.Decimal, error) {
	now := s.now()
	target := Day(now)
	if targetDate != nil {
		target = Day(*targetDate)
	}
	return s.committedIn(ctx, s.store, product, target, nil, now)
}

func (s *Service) committedIn(ctx context.Context, st Store, product string, target time.Time, position *string, now time.Time) (decimal.Decimal, error) {
	holds, err := st.ListHolds(ctx, HoldFilter{
		Product:    product,
		TargetDate: &target,
		Position:   position,
		ActiveAt:   &now,
	})
	if err != nil {
		return decimal.Zero, err
	}
	held := decimal.Zero
	for i := range holds {
		held = held.Add(holds[i].Quantity)
	}
	return held, nil
}

// Demand returns the sum of active unlinked (demand-mode) hold
// quantities for the product at the target date: wanted quantity that
// no stock of any kind backs.
func (s *Service) Demand(ctx context.Context, product string, targetDate time.Time) (decimal.Decimal, error) {
	now := s.now()
	target := Day(targetDate)
	holds, err := s.store.ListHolds(ctx, HoldFilter{
		Product:    product,
		TargetDate: &target,
		Mode:       ModeDemand,
		ActiveAt:   &now,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range holds {
		total = total.Add(holds[i].Quantity)
	}
	return total, nil
}

// =============================================================================
// RECORD LOOKUPS
// =============================================================================

// GetQuant returns the record at the exact coordinate, or nil.
func (s *Service) GetQuant(ctx context.Context, coord Coordinate) (*Quant, error) {
	if coord.TargetDate != nil {
		coord.TargetDate = DayPtr(*coord.TargetDate)
	}
	return s.store.FindQuant(ctx, coord)
}

// GetQuantByID returns the record by ID, or ErrQuantNotFound.
func (s *Service) GetQuantByID(ctx context.Context, id string) (*Quant, error) {
	quant, err := s.store.GetQuant(ctx, id)
	if err != nil {
		return nil, err
	}
	if quant == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuantNotFound, id)
	}
	return quant, nil
}

// ListQuants returns records matching the filter, oldest first.
func (s *Service) ListQuants(ctx context.Context, f QuantFilter) ([]Quant, error) {
	return s.store.ListQuants(ctx, f)
}

// ListHolds returns holds matching the filter.
func (s *Service) ListHolds(ctx context.Context, f HoldFilter) ([]Hold, error) {
	return s.store.ListHolds(ctx, f)
}

// History returns the full ledger for a record in sequence order.
func (s *Service) History(ctx context.Context, quantID string) ([]Move, error) {
	quant, err := s.store.GetQuant(ctx, quantID)
	if err != nil {
		return nil, err
	}
	if quant == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuantNotFound, quantID)
	}
	return s.store.MovesForQuant(ctx, quantID)
}
