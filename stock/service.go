/*
service.go - The stock engine service

PURPOSE:
  Service is the single entry point for all stock operations. Methods
  are split across files by concern:

    movements.go - Receive, Issue, Adjust, Recalculate
    holds.go     - Hold, Confirm, Release, Fulfill, ReleaseExpired
    planning.go  - Plan, Replan, Realize
    queries.go   - OnHand, Available, Demand, Committed, GetQuant, ListQuants

  Parameter convention follows natural language: "plan 50 croissants
  for Friday" → Plan(ctx, PlanRequest{Quantity: 50, Product: croissant,
  TargetDate: friday}).

CONCURRENCY:
  Every state-changing method runs inside the store transaction with
  the appropriate keyed lock held (see locker.go). Queries take no
  locks and never block behind a pending mutation.

SEE ALSO:
  - store.go: Persistence contract
  - api/: HTTP surface over this service
*/
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/stock-engine/catalog"
	"github.com/warp/stock-engine/production"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config carries the values the engine consumes. Loading is the
// caller's concern (flags, env — see cmd/server).
type Config struct {
	// DefaultHoldTTL is applied when a hold is created without an
	// explicit expiry. Zero = holds never expire by default.
	DefaultHoldTTL time.Duration

	// SweepBatchSize bounds each page of the expired-hold sweep.
	SweepBatchSize int

	// ValidateSKUs gates catalog validation before mutations.
	ValidateSKUs bool
}

func DefaultConfig() Config {
	return Config{
		DefaultHoldTTL: 0,
		SweepBatchSize: 200,
		ValidateSKUs:   false,
	}
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  TxStore
	locks  *keyedLocks
	cfg    Config
	log    *zap.Logger
	alerts AlertStore // optional, see SetAlertStore

	// Policies resolves per-product shelf life and availability policy.
	// Defaults to DefaultProductPolicy for every SKU. Set before use.
	Policies PolicyResolver

	// Catalog validates product identifiers when cfg.ValidateSKUs is
	// set. Optional; nil disables validation. Set before use.
	Catalog catalog.Validator

	// Production receives a best-effort ask whenever a hold falls back
	// to demand mode (no stock of any kind could cover it). Optional;
	// nil means no ask is surfaced. Set before use.
	Production production.Backend

	// Clock supplies "now" for activity predicates and timestamps.
	// Defaults to time.Now. Tests override it. Set before use.
	Clock func() time.Time
}

func NewService(store TxStore, cfg Config, log *zap.Logger) *Service {
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = DefaultConfig().SweepBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		locks: newKeyedLocks(),
		cfg:   cfg,
		log:   log,
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Service) policyFor(sku string) ProductPolicy {
	if s.Policies != nil {
		return s.Policies.PolicyFor(sku)
	}
	return DefaultProductPolicy()
}

// validateSKU rejects unknown product identifiers when validation is
// enforced and a catalog is wired.
func (s *Service) validateSKU(sku string) error {
	if !s.cfg.ValidateSKUs || s.Catalog == nil {
		return nil
	}
	res := s.Catalog.Validate(sku)
	if !res.Valid {
		return fmt.Errorf("%w: %s (%s)", ErrUnknownSKU, sku, res.ErrorCode)
	}
	return nil
}

// heldAt sums the active holds linked to a record, evaluated at now.
// This is the "reserved against this record" half of availability.
func (s *Service) heldAt(ctx context.Context, store Store, quantID string, now time.Time) (decimal.Decimal, error) {
	holds, err := store.ListHolds(ctx, HoldFilter{
		QuantID:  quantID,
		ActiveAt: &now,
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
