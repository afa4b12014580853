/*
service_test.go - Shared fixtures for the engine tests

The tests drive a Service over the in-memory transactional store with a
controllable clock, so expiry and shelf-life behavior is deterministic.
*/
package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/stock-engine/stock"
	memstore "github.com/warp/stock-engine/stock/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testClock is a settable clock the service reads from.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time             { return c.now }
func (c *testClock) Advance(d time.Duration)    { c.now = c.now.Add(d) }
func (c *testClock) AdvanceDays(n int)          { c.now = c.now.AddDate(0, 0, n) }
func (c *testClock) Set(t time.Time)            { c.now = t }
func (c *testClock) DaysAhead(n int) time.Time  { return c.now.AddDate(0, 0, n) }
func (c *testClock) DaysAgo(n int) time.Time    { return c.now.AddDate(0, 0, -n) }

func newMemory() *memstore.TxMemory { return memstore.NewTxMemory() }

func newTestService(t *testing.T) (*stock.Service, *memstore.TxMemory, *testClock) {
	t.Helper()

	mem := memstore.NewTxMemory()
	svc := stock.NewService(mem, stock.DefaultConfig(), nil)

	clock := &testClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	svc.Clock = clock.Now
	return svc, mem, clock
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func receive(t *testing.T, svc *stock.Service, product, position string, n int64) *stock.Quant {
	t.Helper()
	quant, err := svc.Receive(context.Background(), stock.ReceiveRequest{
		Quantity: qty(n),
		Product:  product,
		Position: position,
		Reason:   "test stock",
	})
	if err != nil {
		t.Fatalf("receive %d %s: %v", n, product, err)
	}
	return quant
}

func intPtr(n int) *int { return &n }
