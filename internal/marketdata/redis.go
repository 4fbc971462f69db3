package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stratopt/internal/domain"
)

// RedisConfig holds connection parameters for RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // default 24h
}

// RedisCache shares loaded series between processes. Values are the JSON
// encoded bar list of the series.
//
// Key schema:
//
//	series:{SYMBOL}:{start}..{end} - string, JSON []domain.Bar
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis, pings it to verify connectivity and
// returns the cache.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

// Get retrieves a series; it returns domain.ErrNotFound when the key does not
// exist.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.PriceSeries, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return decodeSeries(data)
}

// Set stores s under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, s *domain.PriceSeries) error {
	data, err := encodeSeries(s)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

type cachedSeries struct {
	Symbol string       `json:"symbol"`
	Bars   []domain.Bar `json:"bars"`
}

func encodeSeries(s *domain.PriceSeries) ([]byte, error) {
	return json.Marshal(cachedSeries{Symbol: s.Symbol(), Bars: s.Bars()})
}

func decodeSeries(data []byte) (*domain.PriceSeries, error) {
	var cs cachedSeries
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("redis: unmarshal series: %w", err)
	}
	return domain.NewPriceSeries(cs.Symbol, cs.Bars)
}
