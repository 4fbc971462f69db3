package marketdata

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"stratopt/internal/domain"
	"stratopt/internal/store"
	"stratopt/internal/util"
)

// Compile-time interface checks.
var _ Source = (*CachedSource)(nil)
var _ SymbolLister = (*CachedSource)(nil)

// maxMissingSessions is how many weekday sessions the stored bars may miss at
// either end of the requested range and still cover it. Exchange holidays are
// not in the calendar.
const maxMissingSessions = 3

var calendar = util.NewTradingCalendar(util.MarketUS)

// CachedSource fronts a Source with a SeriesCache keyed by symbol and date
// range. When a bar store is attached, stored bars that cover the range are
// used before the upstream source, and fetched bars are written through.
// Concurrent requests for the same key share one upstream fetch.
type CachedSource struct {
	upstream Source
	cache    SeriesCache
	bars     store.BarStore // optional
	group    singleflight.Group
	log      *slog.Logger
}

// NewCachedSource wraps upstream. A nil cache selects a MemoryCache; bars may
// be nil.
func NewCachedSource(upstream Source, cache SeriesCache, bars store.BarStore, logger *slog.Logger) *CachedSource {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		bars:     bars,
		log:      logger.With("component", "price-cache"),
	}
}

// Series returns the cached series for (symbol, r), loading it on a miss.
func (c *CachedSource) Series(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error) {
	key := CacheKey(symbol, r)
	s, err := c.cache.Get(ctx, key)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		c.log.Warn("cache read failed", "key", key, "err", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.load(ctx, symbol, r)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, s); err != nil {
			c.log.Warn("cache write failed", "key", key, "err", err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PriceSeries), nil
}

// Symbols lists the upstream symbols, or the bar store's when the upstream
// cannot enumerate them.
func (c *CachedSource) Symbols(ctx context.Context) ([]string, error) {
	if l, ok := c.upstream.(SymbolLister); ok {
		return l.Symbols(ctx)
	}
	if c.bars != nil {
		return c.bars.ListSymbols(ctx)
	}
	return nil, nil
}

func (c *CachedSource) load(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error) {
	if c.bars != nil {
		stored, err := NewStoreSource(c.bars).Bars(ctx, symbol, r)
		if err != nil {
			c.log.Warn("bar store read failed", "symbol", symbol, "err", err)
		} else if covers(stored, r) {
			c.log.Debug("served from bar store", "symbol", symbol, "bars", len(stored))
			return seriesFromBars(symbol, stored)
		}
	}

	bs, ok := c.upstream.(BarSource)
	if !ok || c.bars == nil {
		return c.upstream.Series(ctx, symbol, r)
	}
	fetched, err := bs.Bars(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	if err := c.bars.WriteBars(ctx, fetched); err != nil {
		c.log.Warn("bar store write failed", "symbol", symbol, "err", err)
	}
	return seriesFromBars(symbol, fetched)
}

// covers reports whether bars span r, missing at most maxMissingSessions
// trading days at either end.
func covers(bars []domain.Bar, r DateRange) bool {
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	return calendar.SessionsBetween(r.Start, first) <= maxMissingSessions &&
		calendar.SessionsBetween(last.AddDate(0, 0, 1), r.End.AddDate(0, 0, 1)) <= maxMissingSessions
}
