package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stratopt/internal/domain"
	"stratopt/internal/util"
)

// Compile-time interface check.
var _ BarSource = (*AlpacaSource)(nil)

// AlpacaConfig holds credentials and throttling for AlpacaSource.
type AlpacaConfig struct {
	APIKey          string
	APISecret       string
	DataURL         string // optional market-data endpoint override
	Feed            string // "sip" or "iex", default "sip"
	RateLimitPerMin int    // default 200
	MaxAttempts     int    // default 3
}

// AlpacaSource fetches split- and dividend-adjusted daily bars from the
// Alpaca market-data API.
type AlpacaSource struct {
	client   *marketdata.Client
	feed     string
	limiter  *util.RateLimiter
	attempts int
	log      *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
func NewAlpacaSource(cfg AlpacaConfig, logger *slog.Logger) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	if cfg.Feed == "" {
		cfg.Feed = "sip"
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 200
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlpacaSource{
		client:   marketdata.NewClient(opts),
		feed:     cfg.Feed,
		limiter:  util.NewRateLimiter(cfg.RateLimitPerMin),
		attempts: cfg.MaxAttempts,
		log:      logger.With("source", "alpaca"),
	}
}

// Series fetches daily bars for symbol and wraps them in a PriceSeries.
func (s *AlpacaSource) Series(ctx context.Context, symbol string, r DateRange) (*domain.PriceSeries, error) {
	bars, err := s.Bars(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	return seriesFromBars(symbol, bars)
}

// Bars fetches daily bars for symbol, retrying transient failures with
// exponential backoff under the configured rate limit.
func (s *AlpacaSource) Bars(ctx context.Context, symbol string, r DateRange) ([]domain.Bar, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	var raw []marketdata.Bar
	backoff := util.Backoff{Attempts: s.attempts, Base: time.Second, Max: 30 * time.Second}
	err := util.Retry(ctx, backoff, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = s.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      r.Start,
			End:        r.End.AddDate(0, 0, 1),
			Adjustment: marketdata.All,
			Feed:       marketdata.Feed(s.feed),
		})
		if err != nil {
			err = classifyAlpacaError(err)
			s.log.Warn("GetBars failed", "symbol", symbol, "retry", !util.IsPermanent(err), "err", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s bars %s: %w", symbol, r, err)
	}

	s.log.Debug("fetched bars", "symbol", symbol, "range", r.String(), "bars", len(raw))
	return convertBars(symbol, raw, r), nil
}

// classifyAlpacaError leaves rate-limit, server and transport failures
// retryable. Other API responses are permanent; an unknown symbol or an
// unservable range also wraps domain.ErrInsufficientData.
func classifyAlpacaError(err error) error {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return err
	case code == http.StatusNotFound, code == http.StatusUnprocessableEntity:
		return util.Permanent(fmt.Errorf("%w: %w", domain.ErrInsufficientData, err))
	default:
		return util.Permanent(err)
	}
}

// convertBars maps Alpaca bars into domain bars within r.
func convertBars(symbol string, raw []marketdata.Bar, r DateRange) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		if !r.Contains(ab.Timestamp) {
			continue
		}
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}
