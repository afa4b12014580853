/*
holds.go - Reservation lifecycle (Hold, Confirm, Release, Fulfill, sweep)

PURPOSE:
  The hold operations. Creation selects a backing record (FIFO over
  valid quants with enough availability) gated by the product's
  availability policy; the lifecycle transitions run each under the
  hold's exclusive lock.

POLICY GATING (create):
  stock_only:  candidates restricted to physical records; fails with
               INSUFFICIENT_AVAILABLE when none can cover the request
  planned_ok:  forecast records are candidates too (default)
  demand_ok:   falls back to an unlinked demand hold when no stock of
               any kind can cover the request

SWEEP:
  ReleaseExpired pages through expired candidates, TryLocks each hold
  and skips what it cannot get. It never raises business errors; it
  reports a count. Activity being a derived predicate, the sweep has
  zero effect on any availability answer.

SEE ALSO:
  - hold.go: The state machine and activity predicate
  - queries.go: Committed/Demand consumers
*/
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/stock-engine/production"
)

// =============================================================================
// CREATE
// =============================================================================

// HoldRequest asks to block quantity of a product for a target date.
type HoldRequest struct {
	Quantity   decimal.Decimal
	Product    string
	TargetDate *time.Time // nil = today
	Purpose    string
	ExpiresAt  *time.Time // nil = config default TTL (or never)
	Metadata   map[string]string
}

// Hold creates a reservation and returns its public ID ("hold:{id}").
//
// The backing record is chosen FIFO (oldest first) among the product's
// shelf-life-valid records with enough availability, restricted by the
// availability policy. When nothing can cover the request: demand_ok
// creates an unlinked demand hold; any other policy fails with
// ErrInsufficientAvailable.
func (s *Service) Hold(ctx context.Context, req HoldRequest) (string, error) {
	if !req.Quantity.IsPositive() {
		return "", fmt.Errorf("%w: %s", ErrInvalidQuantity, req.Quantity)
	}
	if err := s.validateSKU(req.Product); err != nil {
		return "", err
	}

	now := s.now()
	target := Day(now)
	if req.TargetDate != nil {
		target = Day(*req.TargetDate)
	}
	policy := s.policyFor(req.Product)

	expiresAt := req.ExpiresAt
	if expiresAt == nil && s.cfg.DefaultHoldTTL > 0 {
		e := now.Add(s.cfg.DefaultHoldTTL)
		expiresAt = &e
	}

	// Candidate scan runs unlocked; the winner is re-checked under its
	// coordinate lock before the hold is written.
	candidate, err := s.findQuantForHold(ctx, s.store, req.Product, policy, target, req.Quantity, now)
	if err != nil {
		return "", err
	}

	if candidate != nil {
		holdID, ok, err := s.holdAgainst(ctx, candidate, req, target, expiresAt, now)
		if err != nil {
			return "", err
		}
		if ok {
			return holdID, nil
		}
		// Availability shrank between scan and lock; fall through.
	}

	// Not enough availability. Compute the real total for reporting.
	available, err := s.availableIn(ctx, s.store, req.Product, target, nil, now)
	if err != nil {
		return "", err
	}

	if policy.Availability == DemandOK {
		hold := &Hold{
			ID:         uuid.NewString(),
			Product:    req.Product,
			Mode:       ModeDemand,
			Quantity:   req.Quantity,
			TargetDate: target,
			Status:     HoldPending,
			Purpose:    req.Purpose,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
			Metadata:   req.Metadata,
		}
		if err := s.store.CreateHold(ctx, hold); err != nil {
			return "", err
		}
		holdID := FormatHoldID(hold.ID)
		s.log.Info("stock.hold.demand",
			zap.String("product", req.Product),
			zap.String("qty", req.Quantity.String()),
			zap.String("target", target.Format(dateLayout)),
			zap.String("hold_id", holdID),
		)
		s.askProduction(hold, holdID)
		return holdID, nil
	}

	return "", &QuantityError{
		Code:      "INSUFFICIENT_AVAILABLE",
		Available: available,
		Requested: req.Quantity,
	}
}

// holdAgainst re-checks the candidate's availability under its
// coordinate lock and writes the reservation. ok=false means the
// candidate no longer covers the request.
func (s *Service) holdAgainst(ctx context.Context, candidate *Quant, req HoldRequest, target time.Time, expiresAt *time.Time, now time.Time) (string, bool, error) {
	s.locks.Lock(coordLockKey(candidate.Coordinate))
	defer s.locks.Unlock(coordLockKey(candidate.Coordinate))

	var holdID string
	ok := false
	err := s.store.WithTx(ctx, func(st Store) error {
		quant, err := st.GetQuant(ctx, candidate.ID)
		if err != nil {
			return err
		}
		held, err := s.heldAt(ctx, st, quant.ID, now)
		if err != nil {
			return err
		}
		if quant.Available(held).LessThan(req.Quantity) {
			return nil
		}

		hold := &Hold{
			ID:         uuid.NewString(),
			Product:    req.Product,
			Mode:       ModeReservation,
			QuantID:    quant.ID,
			Quantity:   req.Quantity,
			TargetDate: target,
			Status:     HoldPending,
			Purpose:    req.Purpose,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
			Metadata:   req.Metadata,
		}
		if err := st.CreateHold(ctx, hold); err != nil {
			return err
		}
		holdID = FormatHoldID(hold.ID)
		ok = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if ok {
		s.log.Info("stock.hold.created",
			zap.String("product", req.Product),
			zap.String("qty", req.Quantity.String()),
			zap.String("target", target.Format(dateLayout)),
			zap.String("hold_id", holdID),
		)
	}
	return holdID, ok, nil
}

// findQuantForHold scans the product's records oldest first and returns
// the first valid one whose availability covers the request, or nil.
func (s *Service) findQuantForHold(ctx context.Context, st Store, product string, policy ProductPolicy, target time.Time, qty decimal.Decimal, now time.Time) (*Quant, error) {
	quants, err := st.ListQuants(ctx, QuantFilter{
		Product:       product,
		PhysicalOnly:  policy.Availability == StockOnly,
		IncludeFuture: policy.Availability != StockOnly,
	})
	if err != nil {
		return nil, err
	}
	quants = FilterValid(quants, policy, target)

	for i := range quants {
		held, err := s.heldAt(ctx, st, quants[i].ID, now)
		if err != nil {
			return nil, err
		}
		if quants[i].Available(held).GreaterThanOrEqual(qty) {
			return &quants[i], nil
		}
	}
	return nil, nil
}

// askProduction surfaces an unmet demand hold to the production
// backend. Best effort: the hold stands either way, so failures are
// logged and swallowed.
func (s *Service) askProduction(hold *Hold, holdID string) {
	if s.Production == nil {
		return
	}
	res, err := s.Production.Request(production.Request{
		SKU:        hold.Product,
		Quantity:   hold.Quantity,
		TargetDate: hold.TargetDate,
		Priority:   production.PriorityNormal,
		Reference:  holdID,
	})
	if err != nil {
		s.log.Warn("stock.production.request_failed",
			zap.String("hold_id", holdID),
			zap.Error(err),
		)
		return
	}
	s.log.Info("stock.production.requested",
		zap.String("hold_id", holdID),
		zap.String("request_id", res.RequestID),
		zap.String("state", string(res.State)),
	)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Confirm transitions a hold PENDING → CONFIRMED (checkout started).
func (s *Service) Confirm(ctx context.Context, holdID string) (*Hold, error) {
	return s.transition(ctx, holdID, func(h *Hold, st Store) error {
		if h.Status != HoldPending {
			return &StatusError{HoldID: holdID, Current: h.Status, Expected: []HoldStatus{HoldPending}}
		}
		h.Status = HoldConfirmed
		if err := st.UpdateHold(ctx, h); err != nil {
			return err
		}
		s.log.Info("stock.hold.confirmed", zap.String("hold_id", holdID))
		return nil
	})
}

// Release transitions a hold PENDING|CONFIRMED → RELEASED (cancellation).
// The reason is recorded on the hold's metadata.
func (s *Service) Release(ctx context.Context, holdID, reason string) (*Hold, error) {
	if reason == "" {
		reason = "released"
	}
	return s.transition(ctx, holdID, func(h *Hold, st Store) error {
		if h.Status != HoldPending && h.Status != HoldConfirmed {
			return &StatusError{
				HoldID:   holdID,
				Current:  h.Status,
				Expected: []HoldStatus{HoldPending, HoldConfirmed},
			}
		}
		now := s.now()
		h.Status = HoldReleased
		h.ResolvedAt = &now
		if h.Metadata == nil {
			h.Metadata = map[string]string{}
		}
		h.Metadata["release_reason"] = reason
		if err := st.UpdateHold(ctx, h); err != nil {
			return err
		}
		s.log.Info("stock.hold.released",
			zap.String("hold_id", holdID),
			zap.String("reason", reason),
		)
		return nil
	})
}

// Fulfill transitions a hold CONFIRMED → FULFILLED, appending the
// negative ledger entry against the linked record. Demand holds fail
// with ErrHoldIsDemand; any status but CONFIRMED fails with
// ErrInvalidStatus.
func (s *Service) Fulfill(ctx context.Context, holdID, reference, actor string) (*Move, error) {
	id, err := ParseHoldID(holdID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(holdLockKey(id))
	defer s.locks.Unlock(holdLockKey(id))

	hold, err := s.store.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHold, holdID)
	}
	if hold.Status != HoldConfirmed {
		return nil, &StatusError{HoldID: holdID, Current: hold.Status, Expected: []HoldStatus{HoldConfirmed}}
	}
	if hold.IsDemand() {
		return nil, fmt.Errorf("%w: %s", ErrHoldIsDemand, holdID)
	}

	quant, err := s.store.GetQuant(ctx, hold.QuantID)
	if err != nil {
		return nil, err
	}

	// Coordinate lock taken before the store transaction, same order as
	// every other mutation.
	s.locks.Lock(coordLockKey(quant.Coordinate))
	defer s.locks.Unlock(coordLockKey(quant.Coordinate))

	now := s.now()
	var move *Move
	err = s.store.WithTx(ctx, func(st Store) error {
		move = &Move{
			ID:        uuid.NewString(),
			QuantID:   quant.ID,
			Delta:     hold.Quantity.Neg(),
			Reason:    "fulfilled " + holdID,
			Reference: reference,
			Actor:     actor,
			Timestamp: now,
		}
		if err := st.AppendMove(ctx, move); err != nil {
			return err
		}

		hold.Status = HoldFulfilled
		hold.ResolvedAt = &now
		return st.UpdateHold(ctx, hold)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("stock.hold.fulfilled",
		zap.String("hold_id", holdID),
		zap.String("qty", hold.Quantity.String()),
	)
	return move, nil
}

// transition loads the hold by public ID, locks it, and runs fn inside
// the store transaction. Shared shape of Confirm/Release/Fulfill.
func (s *Service) transition(ctx context.Context, holdID string, fn func(h *Hold, st Store) error) (*Hold, error) {
	id, err := ParseHoldID(holdID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(holdLockKey(id))
	defer s.locks.Unlock(holdLockKey(id))

	var hold *Hold
	err = s.store.WithTx(ctx, func(st Store) error {
		hold, err = st.GetHold(ctx, id)
		if err != nil {
			return err
		}
		if hold == nil {
			return fmt.Errorf("%w: %s", ErrInvalidHold, holdID)
		}
		return fn(hold, st)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// =============================================================================
// EXPIRATION SWEEP
// =============================================================================

// ReleaseExpired transitions expired pending/confirmed holds to
// RELEASED in bounded pages, and returns the count. A hold it cannot
// lock is skipped — a concurrent sweeper or an in-flight transition
// owns it — so parallel sweeps never collide or deadlock. Never
// raises business errors.
//
// Availability never depends on this running: Active() is evaluated at
// read time. The sweep is bookkeeping.
func (s *Service) ReleaseExpired(ctx context.Context) (int, error) {
	now := s.now()
	total := 0

	for {
		candidates, err := s.store.ExpiredHolds(ctx, now, s.cfg.SweepBatchSize)
		if err != nil {
			return total, err
		}
		if len(candidates) == 0 {
			break
		}

		released := 0
		for i := range candidates {
			h := candidates[i]
			if !s.locks.TryLock(holdLockKey(h.ID)) {
				continue
			}
			err := s.store.WithTx(ctx, func(st Store) error {
				fresh, err := st.GetHold(ctx, h.ID)
				if err != nil {
					return err
				}
				// A transition may have resolved it while it sat in
				// the candidate page.
				if fresh == nil || !fresh.Expired(now) ||
					(fresh.Status != HoldPending && fresh.Status != HoldConfirmed) {
					return nil
				}
				fresh.Status = HoldReleased
				fresh.ResolvedAt = &now
				if fresh.Metadata == nil {
					fresh.Metadata = map[string]string{}
				}
				fresh.Metadata["release_reason"] = "expired"
				if err := st.UpdateHold(ctx, fresh); err != nil {
					return err
				}
				released++
				return nil
			})
			s.locks.Unlock(holdLockKey(h.ID))
			if err != nil {
				return total, err
			}
		}
		total += released

		// Every candidate in this page was skipped or already resolved;
		// a retry would spin on the same rows.
		if released == 0 {
			break
		}
	}

	if total > 0 {
		s.log.Info("stock.holds.expired_released", zap.Int("released", total))
	}
	return total, nil
}

// GetHold returns a hold by its public ID, or ErrInvalidHold.
func (s *Service) GetHold(ctx context.Context, holdID string) (*Hold, error) {
	id, err := ParseHoldID(holdID)
	if err != nil {
		return nil, err
	}
	hold, err := s.store.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHold, holdID)
	}
	return hold, nil
}
