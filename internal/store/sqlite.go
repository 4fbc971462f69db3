package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stratopt/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS strategies (
		id                TEXT PRIMARY KEY,
		created_at        INTEGER NOT NULL,
		name              TEXT NOT NULL,
		mode              TEXT NOT NULL,
		symbols           TEXT NOT NULL,
		parameters        TEXT NOT NULL,
		total_return      REAL NOT NULL,
		annualized_return REAL NOT NULL,
		sharpe_ratio      REAL NOT NULL,
		max_drawdown      REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_strategies_created_at ON strategies(created_at)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveResult inserts rec, assigning an ID and creation time when unset.
func (s *SQLiteStore) SaveResult(ctx context.Context, rec *domain.StrategyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	symbols, err := json.Marshal(rec.Symbols)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategies (id, created_at, name, mode, symbols, parameters,
			total_return, annualized_return, sharpe_ratio, max_drawdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixMilli(), rec.Name, rec.Mode, string(symbols), rec.Parameters,
		rec.TotalReturn, rec.AnnualizedReturn, rec.SharpeRatio, rec.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("saving result %s: %w", rec.ID, err)
	}
	return nil
}

// GetResult retrieves a single record by its ID.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*domain.StrategyRecord, error) {
	row := s.db.QueryRowContext(ctx, selectStrategies+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListResults returns the most recent records first.
func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]domain.StrategyRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, selectStrategies+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StrategyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

const selectStrategies = `SELECT id, created_at, name, mode, symbols, parameters,
	total_return, annualized_return, sharpe_ratio, max_drawdown FROM strategies`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*domain.StrategyRecord, error) {
	var (
		rec     domain.StrategyRecord
		created int64
		symbols string
	)
	err := sc.Scan(&rec.ID, &created, &rec.Name, &rec.Mode, &symbols, &rec.Parameters,
		&rec.TotalReturn, &rec.AnnualizedReturn, &rec.SharpeRatio, &rec.MaxDrawdown)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	if err := json.Unmarshal([]byte(symbols), &rec.Symbols); err != nil {
		return nil, fmt.Errorf("decoding symbols of %s: %w", rec.ID, err)
	}
	return &rec, nil
}
