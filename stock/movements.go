/*
movements.go - State-changing stock operations (Receive, Issue, Adjust)

PURPOSE:
  The movement operations built on the AppendMove primitive:

  Receive: locate-or-create the record at a coordinate, append +qty
  Issue:   lock the record, check effective availability, append -qty
  Adjust:  set-to-value correction; appends the difference as a delta

  Corrections are never edits: to fix a wrong value, Adjust appends an
  inverse-sign entry. History is preserved.

CONCURRENCY:
  Each operation locks the target coordinate for the duration of the
  ledger-append-plus-cache-update step, inside the store transaction.
  Two concurrent Issues against the same record are serialized, never
  interleaved.

SEE ALSO:
  - store.go: AppendMove atomicity contract
  - planning.go: Plan/Replan/Realize built on these primitives
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
// REQUESTS
// =============================================================================

// ReceiveRequest describes a stock entry at a coordinate.
type ReceiveRequest struct {
	Quantity   decimal.Decimal
	Product    string
	Position   string
	TargetDate *time.Time
	Batch      string
	Reference  string
	Actor      string
	Reason     string // defaults to "received"
	Metadata   map[string]string
}

// IssueRequest describes a stock exit from an existing record.
type IssueRequest struct {
	Quantity  decimal.Decimal
	QuantID   string
	Reference string
	Actor     string
	Reason    string // defaults to "issued"
}

// AdjustRequest sets a record to a new absolute quantity.
type AdjustRequest struct {
	QuantID     string
	NewQuantity decimal.Decimal
	Reason      string // required
	Actor       string
}

// =============================================================================
// RECEIVE
// =============================================================================

// Receive records a stock entry. It locates or creates the Quant at
// the coordinate and appends a positive Move. No upper bound.
func (s *Service) Receive(ctx context.Context, req ReceiveRequest) (*Quant, error) {
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.Quantity)
	}
	if err := s.validateSKU(req.Product); err != nil {
		return nil, err
	}
	if req.Reason == "" {
		req.Reason = "received"
	}

	coord := Coordinate{
		Product:  req.Product,
		Position: req.Position,
		Batch:    req.Batch,
	}
	if req.TargetDate != nil {
		coord.TargetDate = DayPtr(*req.TargetDate)
	}

	s.locks.Lock(coordLockKey(coord))
	defer s.locks.Unlock(coordLockKey(coord))

	var quant *Quant
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		quant, err = s.getOrCreateQuant(ctx, st, coord, req.Metadata)
		if err != nil {
			return err
		}
		return st.AppendMove(ctx, &Move{
			ID:        uuid.NewString(),
			QuantID:   quant.ID,
			Delta:     req.Quantity,
			Reason:    req.Reason,
			Reference: req.Reference,
			Actor:     req.Actor,
			Metadata:  req.Metadata,
			Timestamp: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	// Re-read: the append bumped the cache inside the transaction.
	quant, err = s.store.GetQuant(ctx, quant.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("stock.receive",
		zap.String("product", req.Product),
		zap.String("qty", req.Quantity.String()),
		zap.String("position", req.Position),
		zap.String("reason", req.Reason),
		zap.String("quant_id", quant.ID),
	)
	return quant, nil
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue records a stock exit. Fails with ErrInsufficientQuantity when
// the requested quantity exceeds the record's effective quantity
// (cached quantity minus active holds linked to it).
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Move, error) {
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.Quantity)
	}
	if req.Reason == "" {
		req.Reason = "issued"
	}

	quant, err := s.store.GetQuant(ctx, req.QuantID)
	if err != nil {
		return nil, err
	}
	if quant == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuantNotFound, req.QuantID)
	}

	s.locks.Lock(coordLockKey(quant.Coordinate))
	defer s.locks.Unlock(coordLockKey(quant.Coordinate))

	var move *Move
	err = s.store.WithTx(ctx, func(st Store) error {
		// Re-read under the lock: the quantity may have changed while
		// we waited.
		locked, err := st.GetQuant(ctx, req.QuantID)
		if err != nil {
			return err
		}

		held, err := s.heldAt(ctx, st, locked.ID, s.now())
		if err != nil {
			return err
		}
		available := locked.Available(held)
		if available.LessThan(req.Quantity) {
			return &QuantityError{
				Code:      "INSUFFICIENT_QUANTITY",
				Available: available,
				Requested: req.Quantity,
			}
		}

		move = &Move{
			ID:        uuid.NewString(),
			QuantID:   locked.ID,
			Delta:     req.Quantity.Neg(),
			Reason:    req.Reason,
			Reference: req.Reference,
			Actor:     req.Actor,
			Timestamp: s.now(),
		}
		return st.AppendMove(ctx, move)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock.issue",
		zap.String("quant_id", req.QuantID),
		zap.String("qty", req.Quantity.String()),
		zap.String("reason", req.Reason),
	)
	return move, nil
}

// =============================================================================
// ADJUST
// =============================================================================

// Adjust sets a record to an absolute quantity, appending the computed
// difference. A zero difference is a no-op: no entry is created and
// (nil, nil) is returned — the engine's sole truly idempotent mutation.
// An empty reason fails with ErrReasonRequired.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (*Move, error) {
	if req.Reason == "" {
		return nil, ErrReasonRequired
	}

	quant, err := s.store.GetQuant(ctx, req.QuantID)
	if err != nil {
		return nil, err
	}
	if quant == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuantNotFound, req.QuantID)
	}

	s.locks.Lock(coordLockKey(quant.Coordinate))
	defer s.locks.Unlock(coordLockKey(quant.Coordinate))

	var move *Move
	err = s.store.WithTx(ctx, func(st Store) error {
		locked, err := st.GetQuant(ctx, req.QuantID)
		if err != nil {
			return err
		}

		delta := req.NewQuantity.Sub(locked.Quantity)
		if delta.IsZero() {
			return nil
		}

		move = &Move{
			ID:        uuid.NewString(),
			QuantID:   locked.ID,
			Delta:     delta,
			Reason:    "adjustment: " + req.Reason,
			Actor:     req.Actor,
			Timestamp: s.now(),
		}
		return st.AppendMove(ctx, move)
	})
	if err != nil {
		return nil, err
	}
	if move != nil {
		s.log.Info("stock.adjust",
			zap.String("quant_id", req.QuantID),
			zap.String("delta", move.Delta.String()),
			zap.String("reason", req.Reason),
		)
	}
	return move, nil
}

// =============================================================================
// RECALCULATE
// =============================================================================

// Recalculate re-derives a record's cached quantity from its full move
// history. Idempotent; used for integrity audits and drift repair. The
// returned value is the ledger truth.
func (s *Service) Recalculate(ctx context.Context, quantID string) (decimal.Decimal, error) {
	quant, err := s.store.GetQuant(ctx, quantID)
	if err != nil {
		return decimal.Zero, err
	}
	if quant == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrQuantNotFound, quantID)
	}

	s.locks.Lock(coordLockKey(quant.Coordinate))
	defer s.locks.Unlock(coordLockKey(quant.Coordinate))

	var total decimal.Decimal
	err = s.store.WithTx(ctx, func(st Store) error {
		moves, err := st.MovesForQuant(ctx, quantID)
		if err != nil {
			return err
		}
		total = decimal.Zero
		for i := range moves {
			total = total.Add(moves[i].Delta)
		}

		locked, err := st.GetQuant(ctx, quantID)
		if err != nil {
			return err
		}
		if total.Equal(locked.Quantity) {
			return nil
		}

		s.log.Warn("stock.recalculate.drift",
			zap.String("quant_id", quantID),
			zap.String("cached", locked.Quantity.String()),
			zap.String("ledger", total.String()),
		)
		return st.SetQuantity(ctx, quantID, total)
	})
	return total, err
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) getOrCreateQuant(ctx context.Context, st Store, coord Coordinate, metadata map[string]string) (*Quant, error) {
	quant, err := st.FindQuant(ctx, coord)
	if err != nil {
		return nil, err
	}
	if quant != nil {
		return quant, nil
	}

	now := s.now()
	quant = &Quant{
		ID:         uuid.NewString(),
		Coordinate: coord,
		Quantity:   decimal.Zero,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.CreateQuant(ctx, quant); err != nil {
		return nil, err
	}
	return quant, nil
}
