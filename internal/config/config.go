package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stratopt/internal/domain"
	"stratopt/internal/param"
)

// DefaultPath is the configuration file used when STRATOPT_CONFIG is unset.
const DefaultPath = "config/stratopt.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stratopt.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Cache    Cache    `yaml:"cache"`
	Logging  Logging  `yaml:"logging"`
	Data     Data     `yaml:"data"`
	Backtest Backtest `yaml:"backtest"`
	Strategy Strategy `yaml:"strategy"`
	Pairs    Pairs    `yaml:"pairs"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	Market     string `yaml:"market"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Cache selects the price series cache.
type Cache struct {
	Backend       string        `yaml:"backend"` // memory, redis or none
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	WriteThrough  bool          `yaml:"write_through"` // save fetched bars to the parquet store
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data selects where price series come from and over which dates.
type Data struct {
	Source  string `yaml:"source"` // parquet, csv or alpaca
	CSVDir  string `yaml:"csv_dir"`
	Start   string `yaml:"start"` // YYYY-MM-DD
	End     string `yaml:"end"`   // YYYY-MM-DD, empty means today
	Workers int    `yaml:"workers"`
}

// Backtest holds simulation and search settings.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	FeeRate        float64 `yaml:"fee_rate"`
	BarsPerYear    float64 `yaml:"bars_per_year"` // 0 infers from timestamps
	Score          string  `yaml:"score"`
	Workers        int     `yaml:"workers"`
	TopN           int     `yaml:"top_n"`
}

// Strategy names the strategy to run and its parameters.
type Strategy struct {
	Type    string                 `yaml:"type"`
	Symbols []string               `yaml:"symbols"`
	Params  map[string]any         `yaml:"params"`
	Ranges  map[string]param.Range `yaml:"ranges"`
}

// Pairs configures the pairs universe search.
type Pairs struct {
	Universe       []string `yaml:"universe"`
	TopN           int      `yaml:"top_n"`
	Filter         string   `yaml:"filter"` // correlation, cointegration or none
	MinCorrelation float64  `yaml:"min_correlation"`
	ADFCritical    float64  `yaml:"adf_critical"`
	Optimize       bool     `yaml:"optimize"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration file path from STRATOPT_CONFIG, or
// DefaultPath.
func Path() string {
	if v := os.Getenv("STRATOPT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path, loads a .env file if
// present, then applies environment variable overrides and defaults. An
// empty path skips the file. The returned Config has not been validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Storage.DataDir, "DATA_DIR")
	setStr(&cfg.Storage.SQLitePath, "SQLITE_PATH")
	setStr(&cfg.Alpaca.APIKey, "ALPACA_API_KEY")
	setStr(&cfg.Alpaca.APISecret, "ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.DataURL, "ALPACA_DATA_URL")
	setStr(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setStr(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")
	setStr(&cfg.Logging.Level, "LOG_LEVEL")

	// Canonical Alpaca SDK names take precedence.
	setStr(&cfg.Alpaca.APIKey, "APCA_API_KEY_ID")
	setStr(&cfg.Alpaca.APISecret, "APCA_API_SECRET_KEY")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/strategies.db"
	}
	if cfg.Storage.Market == "" {
		cfg.Storage.Market = "us"
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "sip"
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "parquet"
	}
	if cfg.Data.Workers == 0 {
		cfg.Data.Workers = 4
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100000
	}
	if cfg.Backtest.Score == "" {
		cfg.Backtest.Score = "sharpe"
	}
	if cfg.Backtest.Workers == 0 {
		cfg.Backtest.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Backtest.TopN == 0 {
		cfg.Backtest.TopN = 10
	}
	if cfg.Pairs.TopN == 0 {
		cfg.Pairs.TopN = 20
	}
	if cfg.Pairs.Filter == "" {
		cfg.Pairs.Filter = "correlation"
	}
	if cfg.Pairs.MinCorrelation == 0 {
		cfg.Pairs.MinCorrelation = 0.7
	}
	if cfg.Pairs.ADFCritical == 0 {
		cfg.Pairs.ADFCritical = -3.34
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks values that do not depend on the strategy registry.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "parquet", "csv", "alpaca":
	default:
		return invalid("data.source %q (want parquet, csv or alpaca)", c.Data.Source)
	}
	if c.Data.Source == "csv" && c.Data.CSVDir == "" {
		return invalid("data.csv_dir is required for the csv source")
	}
	if c.Data.Source == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return invalid("alpaca credentials are required for the alpaca source")
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return invalid("cache.redis_addr is required for the redis backend")
		}
	default:
		return invalid("cache.backend %q (want memory, redis or none)", c.Cache.Backend)
	}
	if !(c.Backtest.InitialCapital > 0) {
		return invalid("backtest.initial_capital %v must be > 0", c.Backtest.InitialCapital)
	}
	if c.Backtest.FeeRate < 0 || c.Backtest.FeeRate >= 1 {
		return invalid("backtest.fee_rate %v must be in [0, 1)", c.Backtest.FeeRate)
	}
	if c.Backtest.BarsPerYear < 0 {
		return invalid("backtest.bars_per_year %v must be >= 0", c.Backtest.BarsPerYear)
	}
	if c.Backtest.TopN < 0 || c.Pairs.TopN < 0 {
		return invalid("top_n must be >= 0")
	}
	switch c.Pairs.Filter {
	case "correlation", "cointegration", "none":
	default:
		return invalid("pairs.filter %q (want correlation, cointegration or none)", c.Pairs.Filter)
	}
	if c.Pairs.MinCorrelation < -1 || c.Pairs.MinCorrelation > 1 {
		return invalid("pairs.min_correlation %v must be in [-1, 1]", c.Pairs.MinCorrelation)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("config: "+format+": %w", append(args, domain.ErrInvalidParameter)...)
}
