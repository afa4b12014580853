/*
planning.go - Production planning (Plan, Replan, Realize)

PURPOSE:
  Forecast records let the engine promise stock before it exists:

  Plan:    receive at a future coordinate (creates/increments forecast)
  Replan:  adjust the existing forecast record (QUANT_NOT_FOUND if none)
  Realize: convert the forecast into physical stock at a position,
           migrating still-active holds

REALIZE IS A THREE-STEP ATOMIC SEQUENCE:
  (a) actual differs from planned → correcting entry on the forecast
  (b) -actual on the forecast, +actual on the (locate-or-create)
      physical record — two linked ledger entries, each independently
      auditable; never a bare transfer primitive
  (c) re-link every still-active hold from the forecast onto the
      physical record, preserving quantity and status

  All three inside one transaction with BOTH coordinates locked (sorted
  order, see locker.go). Re-invocation after full realization finds an
  emptied forecast record and degrades to a zero-effect result: no
  entries, no holds to move, the physical record is returned unchanged.

SEE ALSO:
  - movements.go: The Receive/Adjust primitives Plan/Replan build on
  - hold.go: Why migrated holds keep blocking stock seamlessly
*/
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// PLAN / REPLAN
// =============================================================================

// PlanRequest schedules future production of a product.
type PlanRequest struct {
	Quantity   decimal.Decimal
	Product    string
	TargetDate time.Time // must be in the future
	Position   string
	Reference  string
	Actor      string
	Reason     string // defaults to "production planned"
	Metadata   map[string]string
}

// Plan records planned future production: Receive at a forecast
// coordinate. The target date must be after today.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*Quant, error) {
	if !Day(req.TargetDate).After(Day(s.now())) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTargetDate, req.TargetDate.Format(dateLayout))
	}
	if req.Reason == "" {
		req.Reason = "production planned"
	}
	return s.Receive(ctx, ReceiveRequest{
		Quantity:   req.Quantity,
		Product:    req.Product,
		Position:   req.Position,
		TargetDate: &req.TargetDate,
		Reference:  req.Reference,
		Actor:      req.Actor,
		Reason:     req.Reason,
		Metadata:   req.Metadata,
	})
}

// Replan adjusts the existing forecast record for (product, targetDate)
// to a new absolute quantity. Fails with ErrQuantNotFound when no plan
// exists for the date.
func (s *Service) Replan(ctx context.Context, product string, targetDate time.Time, quantity decimal.Decimal, reason, actor string) (*Quant, error) {
	quant, err := s.findForecast(ctx, product, targetDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.Adjust(ctx, AdjustRequest{
		QuantID:     quant.ID,
		NewQuantity: quantity,
		Reason:      reason,
		Actor:       actor,
	}); err != nil {
		return nil, err
	}
	return s.store.GetQuant(ctx, quant.ID)
}

// =============================================================================
// REALIZE
// =============================================================================

// RealizeRequest converts planned production into physical stock.
type RealizeRequest struct {
	Product    string
	TargetDate time.Time
	ActualQty  decimal.Decimal
	ToPosition string
	Actor      string
	Reason     string // defaults to "production realized"
}

// Realize converts the forecast record for (product, targetDate) into
// physical stock at ToPosition and migrates its still-active holds.
// Fails with ErrQuantNotFound when no plan exists for the date.
func (s *Service) Realize(ctx context.Context, req RealizeRequest) (*Quant, error) {
	if req.ActualQty.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.ActualQty)
	}
	if req.Reason == "" {
		req.Reason = "production realized"
	}

	forecast, err := s.findForecast(ctx, req.Product, req.TargetDate)
	if err != nil {
		return nil, err
	}

	physCoord := Coordinate{Product: req.Product, Position: req.ToPosition}

	// Both coordinates, sorted order. Two concurrent Realizes over
	// overlapping coordinates cannot deadlock.
	unlock := s.locks.LockAll(coordLockKey(forecast.Coordinate), coordLockKey(physCoord))
	defer unlock()

	now := s.now()
	var physical *Quant
	err = s.store.WithTx(ctx, func(st Store) error {
		locked, err := st.GetQuant(ctx, forecast.ID)
		if err != nil {
			return err
		}

		// (a) correct the forecast if actual differs from planned
		if !locked.Quantity.Equal(req.ActualQty) {
			if err := st.AppendMove(ctx, &Move{
				ID:        uuid.NewString(),
				QuantID:   locked.ID,
				Delta:     req.ActualQty.Sub(locked.Quantity),
				Reason:    "production adjustment: " + req.Reason,
				Actor:     req.Actor,
				Timestamp: now,
			}); err != nil {
				return err
			}
		}

		physical, err = s.getOrCreateQuant(ctx, st, physCoord, nil)
		if err != nil {
			return err
		}

		// (b) transfer: exit from forecast, enter physical. Two linked
		// entries, skipped entirely for a zero actual (degenerate case).
		if req.ActualQty.IsPositive() {
			if err := st.AppendMove(ctx, &Move{
				ID:        uuid.NewString(),
				QuantID:   locked.ID,
				Delta:     req.ActualQty.Neg(),
				Reason:    "transfer out: " + req.Reason,
				Actor:     req.Actor,
				Timestamp: now,
			}); err != nil {
				return err
			}
			if err := st.AppendMove(ctx, &Move{
				ID:        uuid.NewString(),
				QuantID:   physical.ID,
				Delta:     req.ActualQty,
				Reason:    "received from production: " + req.Reason,
				Actor:     req.Actor,
				Timestamp: now,
			}); err != nil {
				return err
			}
		}

		// (c) migrate still-active holds onto the physical record,
		// quantity and status untouched
		holds, err := st.ListHolds(ctx, HoldFilter{
			QuantID:  locked.ID,
			Statuses: []HoldStatus{HoldPending, HoldConfirmed},
		})
		if err != nil {
			return err
		}
		for i := range holds {
			holds[i].QuantID = physical.ID
			if err := st.UpdateHold(ctx, &holds[i]); err != nil {
				return err
			}
		}

		physical, err = st.GetQuant(ctx, physical.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock.realize",
		zap.String("product", req.Product),
		zap.String("target", Day(req.TargetDate).Format(dateLayout)),
		zap.String("actual_qty", req.ActualQty.String()),
		zap.String("to_position", req.ToPosition),
	)
	return physical, nil
}

// findForecast locates the forecast record for (product, targetDate) at
// any position. Position-qualified plans are found by exact coordinate
// first, then by scan.
func (s *Service) findForecast(ctx context.Context, product string, targetDate time.Time) (*Quant, error) {
	target := DayPtr(targetDate)

	quant, err := s.store.FindQuant(ctx, Coordinate{Product: product, TargetDate: target})
	if err != nil {
		return nil, err
	}
	if quant != nil {
		return quant, nil
	}

	quants, err := s.store.ListQuants(ctx, QuantFilter{
		Product:       product,
		IncludeFuture: true,
		IncludeEmpty:  true,
	})
	if err != nil {
		return nil, err
	}
	for i := range quants {
		if SameDay(quants[i].TargetDate, target) {
			return &quants[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no plan for %s on %s",
		ErrQuantNotFound, product, target.Format(dateLayout))
}
