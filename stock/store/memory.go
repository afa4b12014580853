// Package store provides the in-memory Store implementation, used for
// tests and development. The SQLite implementation lives in
// store/sqlite at the repository root.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/stock-engine/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	quants   map[string]*stock.Quant // by ID
	byCoord  map[string]string       // coordinate key -> quant ID
	moves    map[string][]stock.Move // by quant ID, in seq order
	seq      int64
	holds    map[string]*stock.Hold
	holdSeq  []string // creation order, for stable listings
	position map[string]stock.Position
	batch    map[string]stock.Batch
	alerts   map[string]*stock.Alert
}

func NewMemory() *Memory {
	return &Memory{
		quants:   make(map[string]*stock.Quant),
		byCoord:  make(map[string]string),
		moves:    make(map[string][]stock.Move),
		holds:    make(map[string]*stock.Hold),
		position: make(map[string]stock.Position),
		batch:    make(map[string]stock.Batch),
		alerts:   make(map[string]*stock.Alert),
	}
}

// --- Quants ---

func (m *Memory) GetQuant(_ context.Context, id string) (*stock.Quant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getQuantLocked(id), nil
}

func (m *Memory) FindQuant(_ context.Context, coord stock.Coordinate) (*stock.Quant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findQuantLocked(coord), nil
}

func (m *Memory) CreateQuant(_ context.Context, q *stock.Quant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createQuantLocked(q)
}

func (m *Memory) ListQuants(_ context.Context, f stock.QuantFilter) ([]stock.Quant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listQuantsLocked(f), nil
}

func (m *Memory) SetQuantity(_ context.Context, quantID string, qty decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setQuantityLocked(quantID, qty)
}

// --- Ledger ---

func (m *Memory) AppendMove(_ context.Context, mv *stock.Move) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMoveLocked(mv)
}

func (m *Memory) MovesForQuant(_ context.Context, quantID string) ([]stock.Move, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]stock.Move, len(m.moves[quantID]))
	copy(result, m.moves[quantID])
	return result, nil
}

// --- Holds ---

func (m *Memory) CreateHold(_ context.Context, h *stock.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createHoldLocked(h)
}

func (m *Memory) GetHold(_ context.Context, id string) (*stock.Hold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getHoldLocked(id), nil
}

func (m *Memory) UpdateHold(_ context.Context, h *stock.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateHoldLocked(h)
}

func (m *Memory) ListHolds(_ context.Context, f stock.HoldFilter) ([]stock.Hold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listHoldsLocked(f), nil
}

func (m *Memory) ExpiredHolds(_ context.Context, now time.Time, limit int) ([]stock.Hold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiredHoldsLocked(now, limit), nil
}

// =============================================================================
// UNLOCKED INTERNALS - Shared by the public methods and the tx view
// =============================================================================

func (m *Memory) getQuantLocked(id string) *stock.Quant {
	q, ok := m.quants[id]
	if !ok {
		return nil
	}
	c := *q
	return &c
}

func (m *Memory) findQuantLocked(coord stock.Coordinate) *stock.Quant {
	id, ok := m.byCoord[coord.Key()]
	if !ok {
		return nil
	}
	return m.getQuantLocked(id)
}

func (m *Memory) createQuantLocked(q *stock.Quant) error {
	key := q.Coordinate.Key()
	if _, taken := m.byCoord[key]; taken {
		return fmt.Errorf("coordinate already has a record: %s", key)
	}
	c := *q
	m.quants[q.ID] = &c
	m.byCoord[key] = q.ID
	return nil
}

func (m *Memory) listQuantsLocked(f stock.QuantFilter) []stock.Quant {
	today := stock.Day(time.Now())
	var result []stock.Quant
	for _, q := range m.quants {
		if f.Product != "" && q.Product != f.Product {
			continue
		}
		if f.Position != nil && q.Position != *f.Position {
			continue
		}
		if f.Batch != nil && q.Batch != *f.Batch {
			continue
		}
		if f.PhysicalOnly && q.TargetDate != nil {
			continue
		}
		if !f.IncludeFuture && q.TargetDate != nil && q.TargetDate.After(today) {
			continue
		}
		if !f.IncludeEmpty && !q.Quantity.IsPositive() {
			continue
		}
		result = append(result, *q)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) setQuantityLocked(quantID string, qty decimal.Decimal) error {
	q, ok := m.quants[quantID]
	if !ok {
		return fmt.Errorf("%w: %s", stock.ErrQuantNotFound, quantID)
	}
	q.Quantity = qty
	q.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) appendMoveLocked(mv *stock.Move) error {
	q, ok := m.quants[mv.QuantID]
	if !ok {
		return fmt.Errorf("%w: %s", stock.ErrQuantNotFound, mv.QuantID)
	}
	m.seq++
	mv.Seq = m.seq
	m.moves[mv.QuantID] = append(m.moves[mv.QuantID], *mv)

	// Cache bump: the other half of the atomic append.
	q.Quantity = q.Quantity.Add(mv.Delta)
	q.UpdatedAt = mv.Timestamp
	return nil
}

func (m *Memory) createHoldLocked(h *stock.Hold) error {
	if _, taken := m.holds[h.ID]; taken {
		return fmt.Errorf("hold already exists: %s", h.ID)
	}
	c := *h
	m.holds[h.ID] = &c
	m.holdSeq = append(m.holdSeq, h.ID)
	return nil
}

func (m *Memory) getHoldLocked(id string) *stock.Hold {
	h, ok := m.holds[id]
	if !ok {
		return nil
	}
	c := *h
	return &c
}

func (m *Memory) updateHoldLocked(h *stock.Hold) error {
	cur, ok := m.holds[h.ID]
	if !ok {
		return fmt.Errorf("%w: %s", stock.ErrInvalidHold, h.ID)
	}
	// Quantity and product are never rewritten.
	cur.Status = h.Status
	cur.QuantID = h.QuantID
	cur.Mode = h.Mode
	cur.ExpiresAt = h.ExpiresAt
	cur.ResolvedAt = h.ResolvedAt
	cur.Metadata = h.Metadata
	return nil
}

func (m *Memory) listHoldsLocked(f stock.HoldFilter) []stock.Hold {
	var result []stock.Hold
	for _, id := range m.holdSeq {
		h := m.holds[id]
		if f.Product != "" && h.Product != f.Product {
			continue
		}
		if f.TargetDate != nil && !stock.Day(h.TargetDate).Equal(stock.Day(*f.TargetDate)) {
			continue
		}
		if f.Mode != "" && h.Mode != f.Mode {
			continue
		}
		if f.QuantID != "" && h.QuantID != f.QuantID {
			continue
		}
		if f.Position != nil {
			if h.QuantID == "" {
				continue
			}
			q, ok := m.quants[h.QuantID]
			if !ok || q.Position != *f.Position {
				continue
			}
		}
		if len(f.Statuses) > 0 && !statusIn(h.Status, f.Statuses) {
			continue
		}
		if f.ActiveAt != nil && !h.Active(*f.ActiveAt) {
			continue
		}
		result = append(result, *h)
	}
	return result
}

func (m *Memory) expiredHoldsLocked(now time.Time, limit int) []stock.Hold {
	var result []stock.Hold
	for _, h := range m.holds {
		if (h.Status == stock.HoldPending || h.Status == stock.HoldConfirmed) && h.Expired(now) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(*result[j].ExpiresAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func statusIn(s stock.HoldStatus, set []stock.HoldStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(stock.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	quants  map[string]*stock.Quant
	byCoord map[string]string
	moves   map[string][]stock.Move
	seq     int64
	holds   map[string]*stock.Hold
	holdSeq []string
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		quants:  make(map[string]*stock.Quant, len(tm.quants)),
		byCoord: make(map[string]string, len(tm.byCoord)),
		moves:   make(map[string][]stock.Move, len(tm.moves)),
		seq:     tm.seq,
		holds:   make(map[string]*stock.Hold, len(tm.holds)),
		holdSeq: append([]string{}, tm.holdSeq...),
	}
	for id, q := range tm.quants {
		c := *q
		s.quants[id] = &c
	}
	for k, v := range tm.byCoord {
		s.byCoord[k] = v
	}
	for id, mv := range tm.moves {
		s.moves[id] = append([]stock.Move{}, mv...)
	}
	for id, h := range tm.holds {
		c := *h
		s.holds[id] = &c
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.quants = s.quants
	tm.byCoord = s.byCoord
	tm.moves = s.moves
	tm.seq = s.seq
	tm.holds = s.holds
	tm.holdSeq = s.holdSeq
}

// txMemoryView runs against the parent's state while the parent's lock
// is already held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetQuant(_ context.Context, id string) (*stock.Quant, error) {
	return tv.parent.getQuantLocked(id), nil
}

func (tv *txMemoryView) FindQuant(_ context.Context, coord stock.Coordinate) (*stock.Quant, error) {
	return tv.parent.findQuantLocked(coord), nil
}

func (tv *txMemoryView) CreateQuant(_ context.Context, q *stock.Quant) error {
	return tv.parent.createQuantLocked(q)
}

func (tv *txMemoryView) ListQuants(_ context.Context, f stock.QuantFilter) ([]stock.Quant, error) {
	return tv.parent.listQuantsLocked(f), nil
}

func (tv *txMemoryView) SetQuantity(_ context.Context, quantID string, qty decimal.Decimal) error {
	return tv.parent.setQuantityLocked(quantID, qty)
}

func (tv *txMemoryView) AppendMove(_ context.Context, mv *stock.Move) error {
	return tv.parent.appendMoveLocked(mv)
}

func (tv *txMemoryView) MovesForQuant(_ context.Context, quantID string) ([]stock.Move, error) {
	result := make([]stock.Move, len(tv.parent.moves[quantID]))
	copy(result, tv.parent.moves[quantID])
	return result, nil
}

func (tv *txMemoryView) CreateHold(_ context.Context, h *stock.Hold) error {
	return tv.parent.createHoldLocked(h)
}

func (tv *txMemoryView) GetHold(_ context.Context, id string) (*stock.Hold, error) {
	return tv.parent.getHoldLocked(id), nil
}

func (tv *txMemoryView) UpdateHold(_ context.Context, h *stock.Hold) error {
	return tv.parent.updateHoldLocked(h)
}

func (tv *txMemoryView) ListHolds(_ context.Context, f stock.HoldFilter) ([]stock.Hold, error) {
	return tv.parent.listHoldsLocked(f), nil
}

func (tv *txMemoryView) ExpiredHolds(_ context.Context, now time.Time, limit int) ([]stock.Hold, error) {
	return tv.parent.expiredHoldsLocked(now, limit), nil
}

// =============================================================================
// SECONDARY ENTITY STORES
// =============================================================================

func (m *Memory) SavePosition(_ context.Context, p stock.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position[p.Code] = p
	return nil
}

func (m *Memory) GetPosition(_ context.Context, code string) (*stock.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.position[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPositions(_ context.Context) ([]stock.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]stock.Position, 0, len(m.position))
	for _, p := range m.position {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *Memory) SaveBatch(_ context.Context, b stock.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch[b.Code] = b
	return nil
}

func (m *Memory) GetBatch(_ context.Context, code string) (*stock.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batch[code]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListBatches(_ context.Context, product string) ([]stock.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []stock.Batch
	for _, b := range m.batch {
		if product != "" && b.Product != product {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *Memory) SaveAlert(_ context.Context, a *stock.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.alerts[a.ID] = &c
	return nil
}

func (m *Memory) ListAlerts(_ context.Context, product string, activeOnly bool) ([]stock.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []stock.Alert
	for _, a := range m.alerts {
		if product != "" && a.Product != product {
			continue
		}
		if activeOnly && !a.IsActive {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) TouchAlert(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("alert not found: %s", id)
	}
	a.LastTriggeredAt = &at
	return nil
}
