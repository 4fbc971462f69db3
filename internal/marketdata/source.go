// Package marketdata loads price series for backtests from the Alpaca
// market-data API, local CSV files or the Parquet bar store, with an explicit
// cache in front keyed by symbol and date range.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stratopt/internal/domain"
)

// Source loads the daily price series of one instrument.
type Source interface {
	// Series returns bars for symbol within r in strictly increasing
	// timestamp order. A symbol without data yields domain.ErrInsufficientData.
	Series(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error)
}

// BarSource is a Source that can also return the raw bars it reads, used to
// write fetched data through to a bar store.
type BarSource interface {
	Source
	Bars(ctx context.Context, symbol string, r DateRange) ([]domain.Bar, error)
}

// SymbolLister is implemented by sources that can enumerate the symbols they
// hold. The pairs search uses it when no universe is configured.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

const dateLayout = "2006-01-02"

// DateRange represents an inclusive time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds. An empty end means today (UTC).
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, fmt.Errorf("parsing start date %q: %w", start, domain.ErrInvalidParameter)
	}
	var e time.Time
	if strings.TrimSpace(end) == "" {
		now := time.Now().UTC()
		e = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else if e, err = time.Parse(dateLayout, strings.TrimSpace(end)); err != nil {
		return DateRange{}, fmt.Errorf("parsing end date %q: %w", end, domain.ErrInvalidParameter)
	}
	r := DateRange{Start: s, End: e}
	return r, r.Validate()
}

// Validate checks that the range is non-empty.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range %s has an open bound: %w", r, domain.ErrInvalidParameter)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range %s ends before it starts: %w", r, domain.ErrInvalidParameter)
	}
	return nil
}

// Contains reports whether t falls within the range. End is inclusive for
// the whole end day.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End.AddDate(0, 0, 1))
}

func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}

// seriesFromBars wraps bars in a PriceSeries, naming the symbol in errors.
func seriesFromBars(symbol string, bars []domain.Bar) (*domain.PriceSeries, error) {
	s, err := domain.NewPriceSeries(strings.ToUpper(symbol), bars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	return s, nil
}
