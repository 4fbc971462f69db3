package marketdata

import (
	"context"

	"stratopt/internal/domain"
	"stratopt/internal/store"
)

// Compile-time interface checks.
var _ BarSource = (*StoreSource)(nil)
var _ SymbolLister = (*StoreSource)(nil)

// StoreSource reads bars previously saved to a store.BarStore.
type StoreSource struct {
	store store.BarStore
}

// NewStoreSource creates a StoreSource over bs.
func NewStoreSource(bs store.BarStore) *StoreSource {
	return &StoreSource{store: bs}
}

func (s *StoreSource) Series(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error) {
	bars, err := s.Bars(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	return seriesFromBars(symbol, bars)
}

func (s *StoreSource) Bars(ctx context.Context, symbol string, r DateRange) ([]domain.Bar, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	bars, err := s.store.ReadBars(ctx, symbol, r.Start, r.End.AddDate(0, 0, 1).Add(-1))
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// Symbols lists the symbols with stored bars.
func (s *StoreSource) Symbols(ctx context.Context) ([]string, error) {
	return s.store.ListSymbols(ctx)
}
