package marketdata

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"stratopt/internal/domain"
)

// Universe normalises symbols to upper case, drops blanks and duplicates
// keeping first occurrence, and truncates to topN (0 keeps all).
func Universe(symbols []string, topN int) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if topN > 0 && len(out) == topN {
			break
		}
	}
	return out
}

// LoadUniverse loads every symbol concurrently with at most workers requests
// in flight. Symbols that fail to load are logged and left out; the result
// keeps the input order. Only cancellation is returned as an error.
func LoadUniverse(ctx context.Context, src Source, symbols []string, r DateRange, workers int, logger *slog.Logger) ([]*domain.PriceSeries, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	loaded := make([]*domain.PriceSeries, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sym := range symbols {
		g.Go(func() error {
			s, err := src.Series(gctx, sym, r)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("skipping symbol", "symbol", sym, "err", err)
				return nil
			}
			loaded[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.PriceSeries, 0, len(loaded))
	for _, s := range loaded {
		if s != nil {
			out = append(out, s)
		}
	}
	logger.Info("universe loaded", "requested", len(symbols), "loaded", len(out), "range", r.String())
	return out, nil
}
