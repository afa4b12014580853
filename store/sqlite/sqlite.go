/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements stock.TxStore plus the secondary stores (PositionStore,
  BatchStore, AlertStore) using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The moves table is an immutable ledger:
  - No UPDATE statements on moves
  - No DELETE statements on moves
  - Corrections via inverse-delta entries only
  The quants.quantity column is the cache; AppendMove writes the ledger
  row and the cache bump in one database transaction.

KEY TABLES:
  quants:       Quantity cache, one row per coordinate (unique index)
  moves:        Immutable ledger; seq is the rowid (total order)
  holds:        Reservations; never deleted, terminal states retained
  positions:    Where stock exists (setup-time entities)
  batches:      Lot metadata keyed by quants.batch
  stock_alerts: Min-stock thresholds

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead. The
  transactional view runs while WithTx holds the write lock, so its
  methods go through unlocked internals.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

USAGE:
  st, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  svc := stock.NewService(st, stock.DefaultConfig(), logger)

SEE ALSO:
  - stock/store.go: Interface definitions
  - stock/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/stock-engine/stock"
)

const dateLayout = "2006-01-02"

// Store implements stock.TxStore and the secondary entity stores.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and a ":memory:"
	// database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Quantity cache: one row per coordinate. target_date '' = physical.
	CREATE TABLE IF NOT EXISTS quants (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		target_date TEXT NOT NULL DEFAULT '',
		batch TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Coordinate uniqueness: at most one record per coordinate
	CREATE UNIQUE INDEX IF NOT EXISTS idx_quants_coordinate
		ON quants(product, position, target_date, batch);
	CREATE INDEX IF NOT EXISTS idx_quants_product
		ON quants(product);

	-- Moves (append-only ledger). seq doubles as the total order.
	CREATE TABLE IF NOT EXISTS moves (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		quant_id TEXT NOT NULL REFERENCES quants(id),
		delta TEXT NOT NULL,
		reason TEXT,
		reference TEXT,
		actor TEXT,
		metadata_json TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_moves_quant
		ON moves(quant_id);
	CREATE INDEX IF NOT EXISTS idx_moves_reference
		ON moves(reference) WHERE reference IS NOT NULL AND reference != '';

	-- Holds (never deleted; terminal states retained for audit)
	CREATE TABLE IF NOT EXISTS holds (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		mode TEXT NOT NULL,
		quant_id TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		target_date TEXT NOT NULL,
		status TEXT NOT NULL,
		purpose TEXT,
		expires_at TEXT,
		created_at TEXT NOT NULL,
		resolved_at TEXT,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_holds_product_date
		ON holds(product, target_date);
	CREATE INDEX IF NOT EXISTS idx_holds_quant
		ON holds(quant_id) WHERE quant_id != '';

	-- Sweep hot path: expired candidates by expiry
	CREATE INDEX IF NOT EXISTS idx_holds_status_expiry
		ON holds(status, expires_at) WHERE expires_at IS NOT NULL;

	-- Positions
	CREATE TABLE IF NOT EXISTS positions (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_saleable BOOLEAN DEFAULT TRUE,
		is_default BOOLEAN DEFAULT FALSE,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Batches (lot metadata)
	CREATE TABLE IF NOT EXISTS batches (
		code TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		production_date TEXT,
		expiry_date TEXT,
		supplier TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_product
		ON batches(product);

	-- Min-stock alerts
	CREATE TABLE IF NOT EXISTS stock_alerts (
		id TEXT PRIMARY KEY,
		product TEXT NOT NULL,
		position TEXT,
		min_quantity TEXT NOT NULL,
		is_active BOOLEAN DEFAULT TRUE,
		last_triggered_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_product
		ON stock_alerts(product);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx; the internals run
// against either.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// QUANT STORE (stock.Store interface)
// =============================================================================

func (s *Store) GetQuant(ctx context.Context, id string) (*stock.Quant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getQuant(ctx, s.db, id)
}

func (s *Store) getQuant(ctx context.Context, q querier, id string) (*stock.Quant, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, product, position, target_date, batch, quantity, metadata_json, created_at, updated_at
		 FROM quants WHERE id = ?`, id)
	return scanQuantRow(row)
}

func (s *Store) FindQuant(ctx context.Context, coord stock.Coordinate) (*stock.Quant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findQuant(ctx, s.db, coord)
}

func (s *Store) findQuant(ctx context.Context, q querier, coord stock.Coordinate) (*stock.Quant, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, product, position, target_date, batch, quantity, metadata_json, created_at, updated_at
		 FROM quants WHERE product = ? AND position = ? AND target_date = ? AND batch = ?`,
		coord.Product, coord.Position, dateColumn(coord.TargetDate), coord.Batch)
	return scanQuantRow(row)
}

func (s *Store) CreateQuant(ctx context.Context, quant *stock.Quant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createQuant(ctx, s.db, quant)
}

func (s *Store) createQuant(ctx context.Context, q querier, quant *stock.Quant) error {
	metadataJSON, _ := json.Marshal(quant.Metadata)

	_, err := q.ExecContext(ctx,
		`INSERT INTO quants (id, product, position, target_date, batch, quantity, metadata_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quant.ID, quant.Product, quant.Position,
		dateColumn(quant.TargetDate), quant.Batch,
		quant.Quantity.String(), string(metadataJSON),
		quant.CreatedAt.UTC().Format(time.RFC3339),
		quant.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("coordinate already has a record: %s", quant.Coordinate.Key())
		}
		return fmt.Errorf("failed to create quant: %w", err)
	}
	return nil
}

func (s *Store) ListQuants(ctx context.Context, f stock.QuantFilter) ([]stock.Quant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listQuants(ctx, s.db, f)
}

func (s *Store) listQuants(ctx context.Context, q querier, f stock.QuantFilter) ([]stock.Quant, error) {
	query := `SELECT id, product, position, target_date, batch, quantity, metadata_json, created_at, updated_at
	          FROM quants WHERE 1=1`
	var args []any

	if f.Product != "" {
		query += " AND product = ?"
		args = append(args, f.Product)
	}
	if f.Position != nil {
		query += " AND position = ?"
		args = append(args, *f.Position)
	}
	if f.Batch != nil {
		query += " AND batch = ?"
		args = append(args, *f.Batch)
	}
	if f.PhysicalOnly {
		query += " AND target_date = ''"
	} else if !f.IncludeFuture {
		query += " AND (target_date = '' OR target_date <= ?)"
		args = append(args, time.Now().UTC().Format(dateLayout))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quants: %w", err)
	}
	defer rows.Close()

	var quants []stock.Quant
	for rows.Next() {
		quant, err := scanQuant(rows)
		if err != nil {
			return nil, err
		}
		// Decimal lives in TEXT; positivity is filtered here, not in SQL.
		if !f.IncludeEmpty && !quant.Quantity.IsPositive() {
			continue
		}
		quants = append(quants, *quant)
	}
	return quants, rows.Err()
}

func (s *Store) SetQuantity(ctx context.Context, quantID string, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setQuantity(ctx, s.db, quantID, qty)
}

func (s *Store) setQuantity(ctx context.Context, q querier, quantID string, qty decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE quants SET quantity = ?, updated_at = ? WHERE id = ?`,
		qty.String(), time.Now().UTC().Format(time.RFC3339), quantID)
	if err != nil {
		return fmt.Errorf("failed to set quantity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", stock.ErrQuantNotFound, quantID)
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendMove outside a WithTx still needs the insert and the cache bump
// atomic, so it opens its own database transaction.
func (s *Store) AppendMove(ctx context.Context, m *stock.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.appendMove(ctx, sqlTx, m); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) appendMove(ctx context.Context, q querier, m *stock.Move) error {
	quant, err := s.getQuant(ctx, q, m.QuantID)
	if err != nil {
		return err
	}
	if quant == nil {
		return fmt.Errorf("%w: %s", stock.ErrQuantNotFound, m.QuantID)
	}

	metadataJSON, _ := json.Marshal(m.Metadata)
	res, err := q.ExecContext(ctx,
		`INSERT INTO moves (id, quant_id, delta, reason, reference, actor, metadata_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.QuantID, m.Delta.String(), m.Reason, m.Reference, m.Actor,
		string(metadataJSON), m.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append move: %w", err)
	}
	m.Seq, _ = res.LastInsertId()

	// Cache bump: the other half of the atomic append.
	newQty := quant.Quantity.Add(m.Delta)
	_, err = q.ExecContext(ctx,
		`UPDATE quants SET quantity = ?, updated_at = ? WHERE id = ?`,
		newQty.String(), m.Timestamp.UTC().Format(time.RFC3339), m.QuantID)
	if err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}
	return nil
}

func (s *Store) MovesForQuant(ctx context.Context, quantID string) ([]stock.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movesForQuant(ctx, s.db, quantID)
}

func (s *Store) movesForQuant(ctx context.Context, q querier, quantID string) ([]stock.Move, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, id, quant_id, delta, reason, reference, actor, metadata_json, timestamp
		 FROM moves WHERE quant_id = ? ORDER BY seq ASC`, quantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query moves: %w", err)
	}
	defer rows.Close()

	var moves []stock.Move
	for rows.Next() {
		var (
			m            stock.Move
			delta        string
			reason       sql.NullString
			reference    sql.NullString
			actor        sql.NullString
			metadataJSON sql.NullString
			ts           string
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.QuantID, &delta,
			&reason, &reference, &actor, &metadataJSON, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		m.Delta = stock.MustParseDecimal(delta)
		m.Reason = reason.String
		m.Reference = reference.String
		m.Actor = actor.String
		m.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &m.Metadata)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// =============================================================================
// HOLD STORE
// =============================================================================

func (s *Store) CreateHold(ctx context.Context, h *stock.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createHold(ctx, s.db, h)
}

func (s *Store) createHold(ctx context.Context, q querier, h *stock.Hold) error {
	metadataJSON, _ := json.Marshal(h.Metadata)
	_, err := q.ExecContext(ctx,
		`INSERT INTO holds (id, product, mode, quant_id, quantity, target_date, status, purpose,
		                    expires_at, created_at, resolved_at, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Product, string(h.Mode), h.QuantID, h.Quantity.String(),
		h.TargetDate.UTC().Format(dateLayout), string(h.Status), h.Purpose,
		nullTime(h.ExpiresAt), h.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(h.ResolvedAt), string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (s *Store) GetHold(ctx context.Context, id string) (*stock.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getHold(ctx, s.db, id)
}

func (s *Store) getHold(ctx context.Context, q querier, id string) (*stock.Hold, error) {
	rows, err := q.QueryContext(ctx, holdSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanHold(rows)
}

func (s *Store) UpdateHold(ctx context.Context, h *stock.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateHold(ctx, s.db, h)
}

// updateHold persists status, resolution, link, and metadata. Quantity
// and product are never rewritten.
func (s *Store) updateHold(ctx context.Context, q querier, h *stock.Hold) error {
	metadataJSON, _ := json.Marshal(h.Metadata)
	res, err := q.ExecContext(ctx,
		`UPDATE holds SET status = ?, mode = ?, quant_id = ?, expires_at = ?, resolved_at = ?, metadata_json = ?
		 WHERE id = ?`,
		string(h.Status), string(h.Mode), h.QuantID,
		nullTime(h.ExpiresAt), nullTime(h.ResolvedAt), string(metadataJSON), h.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update hold: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", stock.ErrInvalidHold, h.ID)
	}
	return nil
}

const holdSelect = `SELECT id, product, mode, quant_id, quantity, target_date, status, purpose,
                           expires_at, created_at, resolved_at, metadata_json
                    FROM holds`

func (s *Store) ListHolds(ctx context.Context, f stock.HoldFilter) ([]stock.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listHolds(ctx, s.db, f)
}

func (s *Store) listHolds(ctx context.Context, q querier, f stock.HoldFilter) ([]stock.Hold, error) {
	query := holdSelect + " WHERE 1=1"
	var args []any

	if f.Product != "" {
		query += " AND product = ?"
		args = append(args, f.Product)
	}
	if f.TargetDate != nil {
		query += " AND target_date = ?"
		args = append(args, f.TargetDate.UTC().Format(dateLayout))
	}
	if f.Mode != "" {
		query += " AND mode = ?"
		args = append(args, string(f.Mode))
	}
	if f.QuantID != "" {
		query += " AND quant_id = ?"
		args = append(args, f.QuantID)
	}
	if f.Position != nil {
		query += " AND quant_id != '' AND quant_id IN (SELECT id FROM quants WHERE position = ?)"
		args = append(args, *f.Position)
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if f.ActiveAt != nil {
		query += " AND status IN ('pending', 'confirmed') AND (expires_at IS NULL OR expires_at >= ?)"
		args = append(args, f.ActiveAt.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	defer rows.Close()

	var holds []stock.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *h)
	}
	return holds, rows.Err()
}

func (s *Store) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]stock.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredHolds(ctx, s.db, now, limit)
}

func (s *Store) expiredHolds(ctx context.Context, q querier, now time.Time, limit int) ([]stock.Hold, error) {
	rows, err := q.QueryContext(ctx,
		holdSelect+` WHERE status IN ('pending', 'confirmed')
		             AND expires_at IS NOT NULL AND expires_at < ?
		             ORDER BY expires_at ASC LIMIT ?`,
		now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired holds: %w", err)
	}
	defer rows.Close()

	var holds []stock.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *h)
	}
	return holds, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (stock.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs while WithTx holds the write lock; it goes through the
// unlocked internals against the open transaction.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetQuant(ctx context.Context, id string) (*stock.Quant, error) {
	return ts.parent.getQuant(ctx, ts.tx, id)
}

func (ts *txStore) FindQuant(ctx context.Context, coord stock.Coordinate) (*stock.Quant, error) {
	return ts.parent.findQuant(ctx, ts.tx, coord)
}

func (ts *txStore) CreateQuant(ctx context.Context, q *stock.Quant) error {
	return ts.parent.createQuant(ctx, ts.tx, q)
}

func (ts *txStore) ListQuants(ctx context.Context, f stock.QuantFilter) ([]stock.Quant, error) {
	return ts.parent.listQuants(ctx, ts.tx, f)
}

func (ts *txStore) SetQuantity(ctx context.Context, quantID string, qty decimal.Decimal) error {
	return ts.parent.setQuantity(ctx, ts.tx, quantID, qty)
}

func (ts *txStore) AppendMove(ctx context.Context, m *stock.Move) error {
	return ts.parent.appendMove(ctx, ts.tx, m)
}

func (ts *txStore) MovesForQuant(ctx context.Context, quantID string) ([]stock.Move, error) {
	return ts.parent.movesForQuant(ctx, ts.tx, quantID)
}

func (ts *txStore) CreateHold(ctx context.Context, h *stock.Hold) error {
	return ts.parent.createHold(ctx, ts.tx, h)
}

func (ts *txStore) GetHold(ctx context.Context, id string) (*stock.Hold, error) {
	return ts.parent.getHold(ctx, ts.tx, id)
}

func (ts *txStore) UpdateHold(ctx context.Context, h *stock.Hold) error {
	return ts.parent.updateHold(ctx, ts.tx, h)
}

func (ts *txStore) ListHolds(ctx context.Context, f stock.HoldFilter) ([]stock.Hold, error) {
	return ts.parent.listHolds(ctx, ts.tx, f)
}

func (ts *txStore) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]stock.Hold, error) {
	return ts.parent.expiredHolds(ctx, ts.tx, now, limit)
}

// =============================================================================
// POSITION STORE
// =============================================================================

// SavePosition inserts or updates a position.
func (s *Store) SavePosition(ctx context.Context, p stock.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, _ := json.Marshal(p.Metadata)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (code, name, kind, is_saleable, is_default, metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			is_saleable = excluded.is_saleable,
			is_default = excluded.is_default,
			metadata_json = excluded.metadata_json`,
		p.Code, p.Name, string(p.Kind), p.IsSaleable, p.IsDefault,
		string(metadataJSON), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetPosition retrieves a position by code.
func (s *Store) GetPosition(ctx context.Context, code string) (*stock.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p            stock.Position
		kind         string
		metadataJSON sql.NullString
		createdAt    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, kind, is_saleable, is_default, metadata_json, created_at
		 FROM positions WHERE code = ?`, code,
	).Scan(&p.Code, &p.Name, &kind, &p.IsSaleable, &p.IsDefault, &metadataJSON, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Kind = stock.PositionKind(kind)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &p.Metadata)
	}
	return &p, nil
}

// ListPositions returns all positions ordered by code.
func (s *Store) ListPositions(ctx context.Context) ([]stock.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, kind, is_saleable, is_default, metadata_json, created_at
		 FROM positions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []stock.Position
	for rows.Next() {
		var (
			p            stock.Position
			kind         string
			metadataJSON sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&p.Code, &p.Name, &kind, &p.IsSaleable, &p.IsDefault, &metadataJSON, &createdAt); err != nil {
			return nil, err
		}
		p.Kind = stock.PositionKind(kind)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &p.Metadata)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// =============================================================================
// BATCH STORE
// =============================================================================

// SaveBatch inserts or updates lot metadata.
func (s *Store) SaveBatch(ctx context.Context, b stock.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (code, product, production_date, expiry_date, supplier, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
			production_date = excluded.production_date,
			expiry_date = excluded.expiry_date,
			supplier = excluded.supplier,
			notes = excluded.notes`,
		b.Code, b.Product, nullDate(b.ProductionDate), nullDate(b.ExpiryDate),
		b.Supplier, b.Notes, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetBatch retrieves lot metadata by code.
func (s *Store) GetBatch(ctx context.Context, code string) (*stock.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b              stock.Batch
		productionDate sql.NullString
		expiryDate     sql.NullString
		supplier       sql.NullString
		notes          sql.NullString
		createdAt      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code, product, production_date, expiry_date, supplier, notes, created_at
		 FROM batches WHERE code = ?`, code,
	).Scan(&b.Code, &b.Product, &productionDate, &expiryDate, &supplier, &notes, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.ProductionDate = parseDatePtr(productionDate)
	b.ExpiryDate = parseDatePtr(expiryDate)
	b.Supplier = supplier.String
	b.Notes = notes.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// ListBatches returns lot metadata, optionally filtered by product.
func (s *Store) ListBatches(ctx context.Context, product string) ([]stock.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT code, product, production_date, expiry_date, supplier, notes, created_at FROM batches`
	var args []any
	if product != "" {
		query += " WHERE product = ?"
		args = append(args, product)
	}
	query += " ORDER BY code"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []stock.Batch
	for rows.Next() {
		var (
			b              stock.Batch
			productionDate sql.NullString
			expiryDate     sql.NullString
			supplier       sql.NullString
			notes          sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&b.Code, &b.Product, &productionDate, &expiryDate, &supplier, &notes, &createdAt); err != nil {
			return nil, err
		}
		b.ProductionDate = parseDatePtr(productionDate)
		b.ExpiryDate = parseDatePtr(expiryDate)
		b.Supplier = supplier.String
		b.Notes = notes.String
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// =============================================================================
// ALERT STORE
// =============================================================================

// SaveAlert inserts or updates a min-stock alert threshold.
func (s *Store) SaveAlert(ctx context.Context, a *stock.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var position sql.NullString
	if a.Position != nil {
		position = sql.NullString{String: *a.Position, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_alerts (id, product, position, min_quantity, is_active, last_triggered_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			min_quantity = excluded.min_quantity,
			is_active = excluded.is_active`,
		a.ID, a.Product, position, a.MinQuantity.String(), a.IsActive,
		nullTime(a.LastTriggeredAt), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListAlerts returns alerts, optionally filtered by product/activity.
func (s *Store) ListAlerts(ctx context.Context, product string, activeOnly bool) ([]stock.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, product, position, min_quantity, is_active, last_triggered_at, created_at
	          FROM stock_alerts WHERE 1=1`
	var args []any
	if product != "" {
		query += " AND product = ?"
		args = append(args, product)
	}
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []stock.Alert
	for rows.Next() {
		var (
			a             stock.Alert
			position      sql.NullString
			minQuantity   string
			lastTriggered sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&a.ID, &a.Product, &position, &minQuantity, &a.IsActive, &lastTriggered, &createdAt); err != nil {
			return nil, err
		}
		if position.Valid {
			p := position.String
			a.Position = &p
		}
		a.MinQuantity = stock.MustParseDecimal(minQuantity)
		if lastTriggered.Valid {
			t, _ := time.Parse(time.RFC3339, lastTriggered.String)
			a.LastTriggeredAt = &t
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// TouchAlert stamps an alert's last-triggered time.
func (s *Store) TouchAlert(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE stock_alerts SET last_triggered_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuantRow(row *sql.Row) (*stock.Quant, error) {
	q, err := scanQuantFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return q, err
}

func scanQuant(rows *sql.Rows) (*stock.Quant, error) {
	return scanQuantFrom(rows)
}

func scanQuantFrom(r rowScanner) (*stock.Quant, error) {
	var (
		q            stock.Quant
		targetDate   string
		quantity     string
		metadataJSON sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := r.Scan(&q.ID, &q.Product, &q.Position, &targetDate, &q.Batch,
		&quantity, &metadataJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if targetDate != "" {
		t, err := time.Parse(dateLayout, targetDate)
		if err != nil {
			return nil, fmt.Errorf("bad target_date %q: %w", targetDate, err)
		}
		q.TargetDate = &t
	}
	q.Quantity = stock.MustParseDecimal(quantity)
	q.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	q.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &q.Metadata)
	}
	return &q, nil
}

func scanHold(rows *sql.Rows) (*stock.Hold, error) {
	var (
		h            stock.Hold
		mode         string
		quantity     string
		targetDate   string
		status       string
		purpose      sql.NullString
		expiresAt    sql.NullString
		createdAt    string
		resolvedAt   sql.NullString
		metadataJSON sql.NullString
	)
	err := rows.Scan(&h.ID, &h.Product, &mode, &h.QuantID, &quantity, &targetDate,
		&status, &purpose, &expiresAt, &createdAt, &resolvedAt, &metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to scan hold: %w", err)
	}

	h.Mode = stock.HoldMode(mode)
	h.Quantity = stock.MustParseDecimal(quantity)
	h.TargetDate, _ = time.Parse(dateLayout, targetDate)
	h.Status = stock.HoldStatus(status)
	h.Purpose = purpose.String
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		h.ExpiresAt = &t
	}
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String)
		h.ResolvedAt = &t
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &h.Metadata)
	}
	return &h, nil
}

func dateColumn(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(dateLayout), Valid: true}
}

func parseDatePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
