/*
planning_test.go - Plan, Replan, Realize

Covers the planning workflow end to end: forecast creation, replan
corrections, and the three-step realization with hold migration.
*/
package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-engine/stock"
)

func TestPlan_CreatesForecastRecord(t *testing.T) {
	// GIVEN: An empty store
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	// WHEN: Planning 80 for tomorrow
	quant, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: clock.DaysAhead(1),
	})

	// THEN: A future-dated record exists
	require.NoError(t, err)
	require.NotNil(t, quant.TargetDate)
	assert.True(t, quant.Coordinate.IsFuture(clock.Now()))
	assert.True(t, quant.Quantity.Equal(qty(80)))
}

func TestPlan_RejectsTodayAndPast(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(10), Product: "croissant", TargetDate: clock.Now(),
	})
	assert.ErrorIs(t, err, stock.ErrInvalidTargetDate)

	_, err = svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(10), Product: "croissant", TargetDate: clock.DaysAgo(1),
	})
	assert.ErrorIs(t, err, stock.ErrInvalidTargetDate)
}

func TestReplan_SetsAbsoluteQuantity(t *testing.T) {
	// GIVEN: A plan of 80
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	target := clock.DaysAhead(2)
	plan, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: target,
	})
	require.NoError(t, err)

	// WHEN: Replanning to 60
	after, err := svc.Replan(ctx, "croissant", target, qty(60), "oven capacity", "chef")
	require.NoError(t, err)

	// THEN: Same record, corrected by an appended move
	assert.Equal(t, plan.ID, after.ID)
	assert.True(t, after.Quantity.Equal(qty(60)))

	moves, err := mem.MovesForQuant(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.True(t, moves[1].Delta.Equal(qty(-20)))
}

func TestReplan_NoPlanFails(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Replan(ctx, "croissant", clock.DaysAhead(2), qty(60), "why not", "")
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)
}

func TestRealize_TransfersToPhysicalAndMigratesHolds(t *testing.T) {
	// GIVEN: A plan of 80 with a confirmed hold of 30 against it
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	target := clock.DaysAhead(1)
	plan, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: target,
	})
	require.NoError(t, err)

	holdID, err := svc.Hold(ctx, stock.HoldRequest{
		Quantity: qty(30), Product: "croissant", TargetDate: &target,
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, holdID)
	require.NoError(t, err)

	// WHEN: The production day arrives and 80 are realized into the display
	clock.AdvanceDays(1)
	physical, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: target, ActualQty: qty(80), ToPosition: "vitrine",
	})
	require.NoError(t, err)

	// THEN: Physical stock carries the quantity; the forecast is emptied
	assert.True(t, physical.Quantity.Equal(qty(80)))
	assert.Equal(t, "vitrine", physical.Position)
	assert.Nil(t, physical.TargetDate)

	forecast, err := mem.GetQuant(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, forecast.Quantity.IsZero())

	// AND: The hold followed the stock, unchanged in quantity and status
	hold, err := svc.GetHold(ctx, holdID)
	require.NoError(t, err)
	assert.Equal(t, physical.ID, hold.QuantID)
	assert.Equal(t, stock.HoldConfirmed, hold.Status)
	assert.True(t, hold.Quantity.Equal(qty(30)))

	// AND: The migrated hold can be fulfilled from the physical record
	move, err := svc.Fulfill(ctx, holdID, "", "")
	require.NoError(t, err)
	assert.True(t, move.Delta.Equal(qty(-30)))
}

func TestRealize_ActualDiffersFromPlanned(t *testing.T) {
	// GIVEN: A plan of 80
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	target := clock.DaysAhead(1)
	plan, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: target,
	})
	require.NoError(t, err)

	// WHEN: Only 72 come out of the oven
	physical, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: target, ActualQty: qty(72), ToPosition: "vitrine",
	})
	require.NoError(t, err)
	assert.True(t, physical.Quantity.Equal(qty(72)))

	// THEN: The forecast ledger shows plan, correction, and transfer out
	moves, err := mem.MovesForQuant(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.True(t, moves[0].Delta.Equal(qty(80)))
	assert.True(t, moves[1].Delta.Equal(qty(-8)))
	assert.True(t, moves[2].Delta.Equal(qty(-72)))

	forecast, err := mem.GetQuant(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, forecast.Quantity.IsZero())
}

func TestRealize_ZeroActualIsDegenerateNoOp(t *testing.T) {
	// GIVEN: A plan of 80, fully realized already
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	target := clock.DaysAhead(1)
	plan, err := svc.Plan(ctx, stock.PlanRequest{
		Quantity: qty(80), Product: "croissant", TargetDate: target,
	})
	require.NoError(t, err)
	first, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: target, ActualQty: qty(80), ToPosition: "vitrine",
	})
	require.NoError(t, err)

	// WHEN: Realizing again with zero
	second, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: target, ActualQty: qty(0), ToPosition: "vitrine",
	})

	// THEN: No transfer entries, physical unchanged
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Quantity.Equal(qty(80)))

	moves, err := mem.MovesForQuant(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 2) // plan + transfer out of the first realization
}

func TestRealize_NegativeActualRejected(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: clock.DaysAhead(1), ActualQty: qty(-1),
	})
	assert.ErrorIs(t, err, stock.ErrInvalidQuantity)
}

func TestRealize_NoPlanFails(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Realize(ctx, stock.RealizeRequest{
		Product: "croissant", TargetDate: clock.DaysAhead(1), ActualQty: qty(10),
	})
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)
}
