/*
sqlite_test.go - Store contract tests against an in-memory database

Mirrors the memory store contract coverage and adds the persistence
concerns specific to SQL: round-tripping dates, decimal TEXT columns,
metadata JSON, and real transaction rollback.
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-engine/stock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newQuant(product, position string, targetDate *time.Time, batch string) *stock.Quant {
	now := time.Now().UTC()
	return &stock.Quant{
		ID: uuid.NewString(),
		Coordinate: stock.Coordinate{
			Product:    product,
			Position:   position,
			TargetDate: targetDate,
			Batch:      batch,
		},
		Quantity:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newHold(product string, qty int64, expiresAt *time.Time) *stock.Hold {
	return &stock.Hold{
		ID:         uuid.NewString(),
		Product:    product,
		Mode:       stock.ModeDemand,
		Quantity:   decimal.NewFromInt(qty),
		TargetDate: stock.Day(time.Now()),
		Status:     stock.HoldPending,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// =============================================================================
// QUANTS
// =============================================================================

func TestQuant_RoundTrip(t *testing.T) {
	// GIVEN: A forecast record with a fractional quantity and metadata
	st := newTestStore(t)
	ctx := context.Background()

	target := stock.Day(time.Now().AddDate(0, 0, 3))
	q := newQuant("farine", "reserve", &target, "lot-7")
	q.Quantity = stock.MustParseDecimal("12.345")
	q.Metadata = map[string]string{"supplier": "moulin"}
	require.NoError(t, st.CreateQuant(ctx, q))

	// THEN: Every field survives the TEXT round trip
	got, err := st.GetQuant(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "farine", got.Product)
	assert.Equal(t, "reserve", got.Position)
	assert.Equal(t, "lot-7", got.Batch)
	require.NotNil(t, got.TargetDate)
	assert.True(t, got.TargetDate.Equal(target))
	assert.True(t, got.Quantity.Equal(stock.MustParseDecimal("12.345")))
	assert.Equal(t, "moulin", got.Metadata["supplier"])
}

func TestQuant_CoordinateUniqueness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateQuant(ctx, newQuant("croissant", "vitrine", nil, "")))

	err := st.CreateQuant(ctx, newQuant("croissant", "vitrine", nil, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinate already has a record")

	// A different batch is a different coordinate
	require.NoError(t, st.CreateQuant(ctx, newQuant("croissant", "vitrine", nil, "lot-a")))
}

func TestFindQuant_NilTargetDateIsPhysical(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	tomorrow := stock.DayPtr(time.Now().AddDate(0, 0, 1))

	physical := newQuant("croissant", "vitrine", nil, "")
	forecast := newQuant("croissant", "vitrine", tomorrow, "")
	require.NoError(t, st.CreateQuant(ctx, physical))
	require.NoError(t, st.CreateQuant(ctx, forecast))

	got, err := st.FindQuant(ctx, stock.Coordinate{Product: "croissant", Position: "vitrine"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, physical.ID, got.ID)
	assert.Nil(t, got.TargetDate)

	missing, err := st.FindQuant(ctx, stock.Coordinate{Product: "croissant", Position: "cave"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetQuantity_UnknownRecord(t *testing.T) {
	st := newTestStore(t)

	err := st.SetQuantity(context.Background(), "nope", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAppendMove_BumpsCacheAndAssignsSeq(t *testing.T) {
	// GIVEN: An empty record
	st := newTestStore(t)
	ctx := context.Background()
	q := newQuant("croissant", "vitrine", nil, "")
	require.NoError(t, st.CreateQuant(ctx, q))

	// WHEN: Appending +50 then -20
	for _, delta := range []string{"50", "-20"} {
		mv := &stock.Move{
			ID:        uuid.NewString(),
			QuantID:   q.ID,
			Delta:     stock.MustParseDecimal(delta),
			Reason:    "test",
			Reference: "order-1",
			Actor:     "tester",
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, st.AppendMove(ctx, mv))
		assert.Positive(t, mv.Seq)
	}

	// THEN: The cache carries the sum and replay matches
	got, err := st.GetQuant(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(30)))

	moves, err := st.MovesForQuant(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Less(t, moves[0].Seq, moves[1].Seq)
	assert.Equal(t, "order-1", moves[0].Reference)
	assert.Equal(t, "tester", moves[0].Actor)

	sum := decimal.Zero
	for _, m := range moves {
		sum = sum.Add(m.Delta)
	}
	assert.True(t, sum.Equal(got.Quantity))
}

func TestAppendMove_UnknownRecordLeavesNoLedgerRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.AppendMove(ctx, &stock.Move{
		ID: uuid.NewString(), QuantID: "nope", Delta: decimal.NewFromInt(1), Reason: "test",
	})
	assert.ErrorIs(t, err, stock.ErrQuantNotFound)

	moves, err := st.MovesForQuant(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

// =============================================================================
// QUANT FILTERS
// =============================================================================

func TestListQuants_Filters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	tomorrow := stock.DayPtr(time.Now().AddDate(0, 0, 1))

	physical := newQuant("croissant", "vitrine", nil, "")
	physical.Quantity = decimal.NewFromInt(10)
	empty := newQuant("croissant", "reserve", nil, "")
	forecast := newQuant("croissant", "vitrine", tomorrow, "")
	forecast.Quantity = decimal.NewFromInt(80)
	for _, q := range []*stock.Quant{physical, empty, forecast} {
		require.NoError(t, st.CreateQuant(ctx, q))
	}

	// Default: non-empty, non-future
	got, err := st.ListQuants(ctx, stock.QuantFilter{Product: "croissant"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, physical.ID, got[0].ID)

	// IncludeFuture + IncludeEmpty returns everything
	got, err = st.ListQuants(ctx, stock.QuantFilter{
		Product: "croissant", IncludeFuture: true, IncludeEmpty: true,
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// PhysicalOnly excludes the dated record even with IncludeFuture
	got, err = st.ListQuants(ctx, stock.QuantFilter{
		Product: "croissant", PhysicalOnly: true, IncludeFuture: true, IncludeEmpty: true,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	pos := "vitrine"
	got, err = st.ListQuants(ctx, stock.QuantFilter{Position: &pos, IncludeFuture: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

// =============================================================================
// HOLDS
// =============================================================================

func TestHold_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	h := newHold("croissant", 12, &expires)
	h.Purpose = "basket:42"
	h.Metadata = map[string]string{"channel": "web"}
	require.NoError(t, st.CreateHold(ctx, h))

	got, err := st.GetHold(ctx, h.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stock.ModeDemand, got.Mode)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "basket:42", got.Purpose)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.Equal(t, "web", got.Metadata["channel"])
	assert.Nil(t, got.ResolvedAt)

	missing, err := st.GetHold(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateHold_PersistsResolutionNotQuantity(t *testing.T) {
	// GIVEN: A stored hold of 10
	st := newTestStore(t)
	ctx := context.Background()
	h := newHold("croissant", 10, nil)
	require.NoError(t, st.CreateHold(ctx, h))

	// WHEN: Updating with a resolution and a tampered quantity
	resolved := time.Now().UTC().Truncate(time.Second)
	mod := *h
	mod.Status = stock.HoldReleased
	mod.ResolvedAt = &resolved
	mod.Quantity = decimal.NewFromInt(999)
	require.NoError(t, st.UpdateHold(ctx, &mod))

	// THEN: Resolution persisted, quantity untouched
	got, err := st.GetHold(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.HoldReleased, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(resolved))
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(10)))

	// Unknown holds are rejected
	ghost := newHold("croissant", 1, nil)
	assert.ErrorIs(t, st.UpdateHold(ctx, ghost), stock.ErrInvalidHold)
}

func TestListHolds_ActiveAtAndPosition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	q := newQuant("croissant", "vitrine", nil, "")
	require.NoError(t, st.CreateQuant(ctx, q))

	linked := newHold("croissant", 5, nil)
	linked.Mode = stock.ModeReservation
	linked.QuantID = q.ID
	expired := newHold("croissant", 3, timePtr(now.Add(-time.Hour)))
	released := newHold("croissant", 2, nil)
	released.Status = stock.HoldReleased
	for _, h := range []*stock.Hold{linked, expired, released} {
		require.NoError(t, st.CreateHold(ctx, h))
	}

	got, err := st.ListHolds(ctx, stock.HoldFilter{Product: "croissant", ActiveAt: &now})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, linked.ID, got[0].ID)

	pos := "vitrine"
	got, err = st.ListHolds(ctx, stock.HoldFilter{Position: &pos})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, linked.ID, got[0].ID)

	got, err = st.ListHolds(ctx, stock.HoldFilter{
		Statuses: []stock.HoldStatus{stock.HoldReleased, stock.HoldFulfilled},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, released.ID, got[0].ID)
}

func TestExpiredHolds_OrderAndLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	oldest := newHold("croissant", 1, timePtr(now.Add(-3*time.Hour)))
	middle := newHold("croissant", 1, timePtr(now.Add(-2*time.Hour)))
	newest := newHold("croissant", 1, timePtr(now.Add(-time.Hour)))
	live := newHold("croissant", 1, timePtr(now.Add(time.Hour)))
	forever := newHold("croissant", 1, nil)
	for _, h := range []*stock.Hold{newest, oldest, live, forever, middle} {
		require.NoError(t, st.CreateHold(ctx, h))
	}

	got, err := st.ExpiredHolds(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, oldest.ID, got[0].ID)
	assert.Equal(t, middle.ID, got[1].ID)

	got, err = st.ExpiredHolds(ctx, now, 100)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackRestoresEverything(t *testing.T) {
	// GIVEN: A record at 10 with one ledger entry
	st := newTestStore(t)
	ctx := context.Background()
	q := newQuant("croissant", "vitrine", nil, "")
	require.NoError(t, st.CreateQuant(ctx, q))
	require.NoError(t, st.AppendMove(ctx, &stock.Move{
		ID: uuid.NewString(), QuantID: q.ID, Delta: decimal.NewFromInt(10), Reason: "test",
	}))

	// WHEN: A transaction appends, creates, and then fails
	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx stock.Store) error {
		if err := tx.AppendMove(ctx, &stock.Move{
			ID: uuid.NewString(), QuantID: q.ID, Delta: decimal.NewFromInt(-4), Reason: "test",
		}); err != nil {
			return err
		}
		if err := tx.CreateQuant(ctx, newQuant("pain", "vitrine", nil, "")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: Nothing from the transaction survives
	got, err := st.GetQuant(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(10)))

	moves, err := st.MovesForQuant(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 1)

	gone, err := st.FindQuant(ctx, stock.Coordinate{Product: "pain", Position: "vitrine"})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestWithTx_CommitKeepsChanges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	q := newQuant("croissant", "vitrine", nil, "")

	err := st.WithTx(ctx, func(tx stock.Store) error {
		if err := tx.CreateQuant(ctx, q); err != nil {
			return err
		}
		if err := tx.AppendMove(ctx, &stock.Move{
			ID: uuid.NewString(), QuantID: q.ID, Delta: decimal.NewFromInt(12), Reason: "test",
		}); err != nil {
			return err
		}
		return tx.CreateHold(ctx, newHold("croissant", 3, nil))
	})
	require.NoError(t, err)

	got, err := st.GetQuant(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(12)))

	holds, err := st.ListHolds(ctx, stock.HoldFilter{Product: "croissant"})
	require.NoError(t, err)
	assert.Len(t, holds, 1)
}

// =============================================================================
// SECONDARY ENTITIES
// =============================================================================

func TestPositions_UpsertAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SavePosition(ctx, stock.Position{
		Code: "vitrine", Name: "Vitrine", Kind: stock.PositionPhysical, IsSaleable: true,
	}))
	require.NoError(t, st.SavePosition(ctx, stock.Position{
		Code: "pertes", Name: "Pertes", Kind: stock.PositionVirtual,
	}))

	// Saving the same code again updates in place
	require.NoError(t, st.SavePosition(ctx, stock.Position{
		Code: "vitrine", Name: "Vitrine principale", Kind: stock.PositionPhysical, IsSaleable: true,
	}))

	p, err := st.GetPosition(ctx, "vitrine")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Vitrine principale", p.Name)

	missing, err := st.GetPosition(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := st.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "pertes", all[0].Code)
}

func TestBatches_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	production := stock.Day(time.Now())
	expiry := stock.Day(time.Now().AddDate(0, 0, 5))
	require.NoError(t, st.SaveBatch(ctx, stock.Batch{
		Code: "lot-7", Product: "farine",
		ProductionDate: &production, ExpiryDate: &expiry,
		Supplier: "moulin",
	}))
	require.NoError(t, st.SaveBatch(ctx, stock.Batch{Code: "lot-8", Product: "beurre"}))

	b, err := st.GetBatch(ctx, "lot-7")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.NotNil(t, b.ProductionDate)
	assert.True(t, b.ProductionDate.Equal(production))
	require.NotNil(t, b.ExpiryDate)
	assert.True(t, b.ExpiryDate.Equal(expiry))
	assert.Equal(t, "moulin", b.Supplier)

	byProduct, err := st.ListBatches(ctx, "farine")
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, "lot-7", byProduct[0].Code)

	all, err := st.ListBatches(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAlerts_UpsertListTouch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pos := "vitrine"
	require.NoError(t, st.SaveAlert(ctx, &stock.Alert{
		ID: "a1", Product: "baguette", Position: &pos,
		MinQuantity: decimal.NewFromInt(10), IsActive: true,
	}))
	require.NoError(t, st.SaveAlert(ctx, &stock.Alert{
		ID: "a2", Product: "baguette",
		MinQuantity: decimal.NewFromInt(5), IsActive: false,
	}))

	active, err := st.ListAlerts(ctx, "baguette", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a1", active[0].ID)
	require.NotNil(t, active[0].Position)
	assert.Equal(t, "vitrine", *active[0].Position)

	// Upsert flips activity
	require.NoError(t, st.SaveAlert(ctx, &stock.Alert{
		ID: "a2", Product: "baguette",
		MinQuantity: decimal.NewFromInt(5), IsActive: true,
	}))
	active, err = st.ListAlerts(ctx, "baguette", true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.TouchAlert(ctx, "a1", at))
	all, err := st.ListAlerts(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].LastTriggeredAt)
	assert.True(t, all[0].LastTriggeredAt.Equal(at))
}
