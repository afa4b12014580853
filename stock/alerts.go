/*
alerts.go - Min-stock alert thresholds

PURPOSE:
  An Alert fires when a product's available quantity drops below a
  configured minimum. One alert per (product, position) pair; a nil
  position means "sum of all positions".

  CheckAlerts is meant to run periodically (scheduler) or after stock
  changes. The engine only detects and stamps; delivering the
  notification (email, webhook) is the caller's concern.

SEE ALSO:
  - queries.go: the availability math alerts evaluate
  - api/scheduler.go: periodic trigger
*/
package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// ALERT
// =============================================================================

// Alert is a configurable min-stock threshold. Triggered when the
// product's available quantity at today's date drops below MinQuantity.
type Alert struct {
	ID      string
	Product string

	// Position restricts the check to one position; nil = all positions
	// combined.
	Position *string

	MinQuantity decimal.Decimal
	IsActive    bool

	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// TriggeredAlert pairs a fired alert with the availability that fired it.
type TriggeredAlert struct {
	Alert     Alert
	Available decimal.Decimal
}

// =============================================================================
// CHECK
// =============================================================================

// CheckAlerts evaluates active alerts and returns the triggered ones,
// stamping each's last-triggered time. Pass product="" to check all.
// Requires an AlertStore wired via SetAlertStore; returns nil otherwise.
func (s *Service) CheckAlerts(ctx context.Context, product string) ([]TriggeredAlert, error) {
	if s.alerts == nil {
		return nil, nil
	}
	alerts, err := s.alerts.ListAlerts(ctx, product, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var triggered []TriggeredAlert
	for i := range alerts {
		a := alerts[i]
		available, err := s.Available(ctx, a.Product, nil, a.Position)
		if err != nil {
			return nil, err
		}
		if available.GreaterThanOrEqual(a.MinQuantity) {
			continue
		}
		if err := s.alerts.TouchAlert(ctx, a.ID, now); err != nil {
			return nil, err
		}
		a.LastTriggeredAt = &now
		triggered = append(triggered, TriggeredAlert{Alert: a, Available: available})

		pos := "all"
		if a.Position != nil {
			pos = *a.Position
		}
		s.log.Warn("stock.alert.triggered",
			zap.String("alert_id", a.ID),
			zap.String("product", a.Product),
			zap.String("min_quantity", a.MinQuantity.String()),
			zap.String("available", available.String()),
			zap.String("position", pos),
		)
	}
	return triggered, nil
}

// SetAlertStore wires the alert threshold store. Optional; without it
// CheckAlerts is a no-op.
func (s *Service) SetAlertStore(store AlertStore) { s.alerts = store }
