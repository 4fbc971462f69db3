package marketdata

import (
	"context"
	"strings"
	"sync"

	"stratopt/internal/domain"
)

// SeriesCache holds loaded series keyed by CacheKey. Get returns
// domain.ErrNotFound on a miss.
type SeriesCache interface {
	Get(ctx context.Context, key string) (*domain.PriceSeries, error)
	Set(ctx context.Context, key string, s *domain.PriceSeries) error
}

// Compile-time interface checks.
var _ SeriesCache = (*MemoryCache)(nil)
var _ SeriesCache = (*RedisCache)(nil)

// CacheKey identifies a series by symbol and requested range.
func CacheKey(symbol string, r DateRange) string {
	return "series:" + strings.ToUpper(symbol) + ":" + r.String()
}

// MemoryCache is an in-process SeriesCache. PriceSeries values are immutable,
// so cached pointers are shared between callers.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.PriceSeries
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*domain.PriceSeries)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*domain.PriceSeries, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, s *domain.PriceSeries) error {
	c.mu.Lock()
	c.entries[key] = s
	c.mu.Unlock()
	return nil
}
