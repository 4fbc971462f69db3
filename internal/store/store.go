// Package store defines storage interfaces for persisting and retrieving
// price bars and backtest result history.
package store

import (
	"context"
	"time"

	"stratopt/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end], in
	// timestamp order.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in storage.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ResultStore persists the summary of backtest and optimization runs.
type ResultStore interface {
	// SaveResult inserts rec. An empty ID is assigned a new UUID.
	SaveResult(ctx context.Context, rec *domain.StrategyRecord) error

	// GetResult retrieves a single record by ID, or domain.ErrNotFound.
	GetResult(ctx context.Context, id string) (*domain.StrategyRecord, error)

	// ListResults returns the most recent records, newest first, up to limit.
	// A limit <= 0 returns all records.
	ListResults(ctx context.Context, limit int) ([]domain.StrategyRecord, error)
}
