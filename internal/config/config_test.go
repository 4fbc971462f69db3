package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"stratopt/internal/domain"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "stratopt-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "ALPACA_DATA_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, `
storage:
  data_dir: "/tmp/stratopt/data"
  sqlite_path: "/tmp/stratopt/strategies.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "iex"
cache:
  backend: redis
  redis_addr: "localhost:6379"
  ttl: 2h
logging:
  level: "debug"
  format: "text"
data:
  source: alpaca
  start: "2020-01-01"
  end: "2023-12-31"
backtest:
  initial_capital: 50000
  fee_rate: 0.001
  score: calmar
  workers: 4
strategy:
  type: sma-cross
  symbols: [SPY]
  params:
    fast: 10
    slow: 50
  ranges:
    fast: {min: 5, max: 20, step: 5}
    slow: {values: [50, 100, 200]}
pairs:
  universe: [KO, PEP, XOM, CVX]
  filter: cointegration
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/stratopt/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/stratopt/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/stratopt/strategies.db" {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}

	// -- Alpaca / cache --
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("Cache = %+v, want redis with 2h TTL", cfg.Cache)
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 50000 || cfg.Backtest.FeeRate != 0.001 || cfg.Backtest.Score != "calmar" {
		t.Errorf("Backtest = %+v", cfg.Backtest)
	}

	// -- Strategy --
	if cfg.Strategy.Type != "sma-cross" || len(cfg.Strategy.Symbols) != 1 {
		t.Errorf("Strategy = %+v", cfg.Strategy)
	}
	if cfg.Strategy.Params["fast"] != 10 {
		t.Errorf("Strategy.Params[fast] = %v (%T), want 10", cfg.Strategy.Params["fast"], cfg.Strategy.Params["fast"])
	}
	if r := cfg.Strategy.Ranges["fast"]; r.Min != 5 || r.Max != 20 || r.Step != 5 {
		t.Errorf("Ranges[fast] = %+v", r)
	}
	if r := cfg.Strategy.Ranges["slow"]; len(r.Values) != 3 {
		t.Errorf("Ranges[slow] = %+v, want 3 values", r)
	}

	// -- Pairs --
	if len(cfg.Pairs.Universe) != 4 || cfg.Pairs.Filter != "cointegration" {
		t.Errorf("Pairs = %+v", cfg.Pairs)
	}
	if cfg.Pairs.TopN != 20 || cfg.Pairs.MinCorrelation != 0.7 {
		t.Errorf("Pairs defaults = top %d, min corr %v; want 20, 0.7", cfg.Pairs.TopN, cfg.Pairs.MinCorrelation)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.FeeRate != 0 {
		t.Errorf("FeeRate = %v, want 0", cfg.Backtest.FeeRate)
	}
	if cfg.Backtest.Score != "sharpe" {
		t.Errorf("Score = %q, want sharpe", cfg.Backtest.Score)
	}
	if cfg.Backtest.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Backtest.Workers)
	}
	if cfg.Data.Source != "parquet" || cfg.Cache.Backend != "memory" {
		t.Errorf("source/cache = %q/%q, want parquet/memory", cfg.Data.Source, cfg.Cache.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/stratopt.yaml"); err == nil {
		t.Error("Load of a missing file returned nil error")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, `
storage:
  data_dir: "/from/file"
alpaca:
  api_key: "file-key"
`)
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, want /from/env", cfg.Storage.DataDir)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("APIKey = %q, want the APCA_API_KEY_ID value", cfg.Alpaca.APIKey)
	}
	if cfg.Cache.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.Cache.RedisDB)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("STRATOPT_CONFIG", "")
	if Path() != DefaultPath {
		t.Errorf("Path() = %q, want %q", Path(), DefaultPath)
	}
	t.Setenv("STRATOPT_CONFIG", "/etc/stratopt.yaml")
	if Path() != "/etc/stratopt.yaml" {
		t.Errorf("Path() = %q, want /etc/stratopt.yaml", Path())
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Data.Source = "ftp" }},
		{"csv without dir", func(c *Config) { c.Data.Source = "csv" }},
		{"alpaca without keys", func(c *Config) { c.Data.Source = "alpaca" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"negative capital", func(c *Config) { c.Backtest.InitialCapital = -1 }},
		{"fee of one", func(c *Config) { c.Backtest.FeeRate = 1 }},
		{"negative bars per year", func(c *Config) { c.Backtest.BarsPerYear = -252 }},
		{"bad filter", func(c *Config) { c.Pairs.Filter = "vibes" }},
		{"correlation above one", func(c *Config) { c.Pairs.MinCorrelation = 1.5 }},
	}
	for _, c := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		c.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidParameter", c.name, err)
		}
	}
}
