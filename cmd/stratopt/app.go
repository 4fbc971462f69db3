package main

import (
	"context"
	"fmt"
	"log/slog"

	"stratopt/internal/backtest"
	"stratopt/internal/config"
	"stratopt/internal/engine"
	"stratopt/internal/marketdata"
	"stratopt/internal/store"
	"stratopt/internal/strategy/builtins"
)

// app owns the long-lived resources behind one command.
type app struct {
	engine  *engine.Engine
	results *store.SQLiteStore
	redis   *marketdata.RedisCache
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	src, err := a.source(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.results, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening result store: %w", err)
	}

	a.engine, err = engine.New(builtins.NewRegistry(), src, a.results, engine.Options{
		Backtest: backtest.Config{
			InitialCapital: cfg.Backtest.InitialCapital,
			FeeRate:        cfg.Backtest.FeeRate,
		},
		BarsPerYear: cfg.Backtest.BarsPerYear,
		Score:       cfg.Backtest.Score,
		Workers:     cfg.Backtest.Workers,
		TopN:        cfg.Backtest.TopN,
		DataWorkers: cfg.Data.Workers,
		OnProgress:  progress(logger),
		Logger:      logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// source builds the configured price source behind the series cache.
func (a *app) source(ctx context.Context, cfg *config.Config, logger *slog.Logger) (marketdata.Source, error) {
	bars := store.NewParquetStore(cfg.Storage.DataDir, cfg.Storage.Market)

	var upstream marketdata.Source
	switch cfg.Data.Source {
	case "csv":
		upstream = marketdata.NewCSVSource(cfg.Data.CSVDir)
	case "alpaca":
		upstream = marketdata.NewAlpacaSource(marketdata.AlpacaConfig{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
		}, logger)
	default:
		upstream = marketdata.NewStoreSource(bars)
	}

	var cache marketdata.SeriesCache
	switch cfg.Cache.Backend {
	case "none":
		return upstream, nil
	case "redis":
		rc, err := marketdata.NewRedisCache(ctx, marketdata.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.redis = rc
		cache = rc
	default:
		cache = marketdata.NewMemoryCache()
	}

	// The parquet source already reads from the bar store.
	var writeThrough store.BarStore
	if cfg.Cache.WriteThrough && cfg.Data.Source != "parquet" {
		writeThrough = bars
	}
	slog.Info("price source ready",
		"source", cfg.Data.Source,
		"cache", cfg.Cache.Backend,
		"writeThrough", writeThrough != nil,
	)
	return marketdata.NewCachedSource(upstream, cache, writeThrough, logger), nil
}

func (a *app) Close() {
	if a.results != nil {
		a.results.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// progress logs search progress at every tenth of the candidates.
func progress(logger *slog.Logger) func(done, total int) {
	return func(done, total int) {
		step := max(total/10, 1)
		if done%step == 0 || done == total {
			logger.Info("search progress", "done", done, "total", total)
		}
	}
}
