/*
queries_test.go - Availability math and shelf-life filtering

on_hand / committed / demand / available across positions, target
dates, and product shelf lives.
*/
package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestAvailable_OnHandMinusCommitted(t *testing.T) {
	// GIVEN: 100 on hand across two positions, 25 committed
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	receive(t, svc, "croissant", "vitrine", 40)
	receive(t, svc, "croissant", "reserve", 60)

	_, err := svc.Hold(ctx, stock.HoldRequest{Quantity: qty(25), Product: "croissant"})
	require.NoError(t, err)

	onHand, err := svc.OnHand(ctx, "croissant", nil, nil)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(qty(100)))

	committed, err := svc.Committed(ctx, "croissant", nil)
	require.NoError(t, err)
	assert.True(t, committed.Equal(qty(25)))

	available, err := svc.Available(ctx, "croissant", nil, nil)
	require.NoError(t, err)
	assert.True(t, available.Equal(qty(75)))
}

func TestAvailable_PositionScoped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	receive(t, svc, "croissant", "vitrine", 40)
	receive(t, svc, "croissant", "reserve", 60)

	pos := "vitrine"
	available, err := svc.Available(ctx, "croissant", nil, &pos)
	require.NoError(t, err)
	assert.True(t, available.Equal(qty(40)))
}

func TestAvailable_FutureDateIncludesPlans(t *testing.T) {
	// GIVEN: 20 physical plus a plan of 80 for tomorrow
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	receive(t, svc, "croissant", "vitrine", 20)
	_, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: clock.DaysAhead(1),
	})
	require.NoError(t, err)

	// Today: only the physical stock counts
	today, err := svc.Available(ctx, "croissant", nil, nil)
	require.NoError(t, err)
	assert.True(t, today.Equal(qty(20)))

	// Tomorrow: physical + forecast
	tomorrow := clock.DaysAhead(1)
	future, err := svc.Available(ctx, "croissant", &tomorrow, nil)
	require.NoError(t, err)
	assert.True(t, future.Equal(qty(100)))
}

func TestCommitted_CountsBothModes(t *testing.T) {
	// GIVEN: A reservation and a demand hold on the same product
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	svc.Policies = stock.StaticPolicies{"croissant": {Availability: stock.DemandOK}}
	receive(t, svc, "croissant", "vitrine", 10)

	_, err := svc.Hold(ctx, stock.HoldRequest{Quantity: qty(6), Product: "croissant"})
	require.NoError(t, err)
	// Second request exceeds remaining stock, becomes demand
	_, err = svc.Hold(ctx, stock.HoldRequest{Quantity: qty(9), Product: "croissant"})
	require.NoError(t, err)

	committed, err := svc.Committed(ctx, "croissant", nil)
	require.NoError(t, err)
	assert.True(t, committed.Equal(qty(15)))

	demand, err := svc.Demand(ctx, "croissant", svc.Clock())
	require.NoError(t, err)
	assert.True(t, demand.Equal(qty(9)))
}

// =============================================================================
// SHELF LIFE
// =============================================================================

func TestOnHand_SameDayShelfLifeExcludesYesterday(t *testing.T) {
	// GIVEN: croissants expire same-day; yesterday's batch still stored
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	svc.Policies = stock.StaticPolicies{
		"croissant": {Shelflife: intPtr(0), Availability: stock.PlannedOK},
	}

	receive(t, svc, "croissant", "vitrine", 30)
	clock.AdvanceDays(1)
	receive(t, svc, "croissant", "reserve", 20)

	// THEN: Only today's production counts
	onHand, err := svc.OnHand(ctx, "croissant", nil, nil)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(qty(20)))
}

func TestOnHand_ShelfLifeWindow(t *testing.T) {
	// GIVEN: Cake keeps 3 days; batches 4 days old and 2 days old
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	svc.Policies = stock.StaticPolicies{
		"cake": {Shelflife: intPtr(3), Availability: stock.PlannedOK},
	}

	receive(t, svc, "cake", "vitrine", 5)
	clock.AdvanceDays(2)
	receive(t, svc, "cake", "reserve", 7)
	clock.AdvanceDays(2)

	// THEN: The 4-day-old batch is out, the 2-day-old batch counts
	onHand, err := svc.OnHand(ctx, "cake", nil, nil)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(qty(7)))
}

func TestOnHand_NilShelfLifeNeverExpires(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	receive(t, svc, "vin", "cave", 12)

	clock.AdvanceDays(3650)

	onHand, err := svc.OnHand(ctx, "vin", nil, nil)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(qty(12)))
}

func TestHold_ShelfLifeFiltersCandidates(t *testing.T) {
	// GIVEN: Same-day croissants, only yesterday's batch in stock
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	svc.Policies = stock.StaticPolicies{
		"croissant": {Shelflife: intPtr(0), Availability: stock.PlannedOK},
	}
	receive(t, svc, "croissant", "vitrine", 30)
	clock.AdvanceDays(1)

	// WHEN: Holding for today
	_, err := svc.Hold(ctx, stock.HoldRequest{Quantity: qty(5), Product: "croissant"})

	// THEN: The stale batch cannot back the hold
	require.ErrorIs(t, err, stock.ErrInsufficientAvailable)
	var qe *stock.QuantityError
	require.ErrorAs(t, err, &qe)
	assert.True(t, qe.Available.IsZero())
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestGetQuant_ByCoordinate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created := receive(t, svc, "croissant", "vitrine", 10)

	found, err := svc.GetQuant(ctx, stock.Coordinate{Product: "croissant", Position: "vitrine"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := svc.GetQuant(ctx, stock.Coordinate{Product: "croissant", Position: "cave"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetQuantByID_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetQuantByID(context.Background(), "nope")
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)
}

func TestHistory_UnknownRecord(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.History(context.Background(), "nope")
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)
}
