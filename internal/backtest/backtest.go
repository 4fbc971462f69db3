// Package backtest replays target-position signals against historical bars
// and produces an equity curve and trade log.
//
// Execution convention: the target computed at bar t is filled at the open of
// bar t+1. Equity is marked at every close, bar 0 reports the initial
// capital, and the target of the final bar is never filled.
package backtest

import (
	"fmt"
	"math"

	"stratopt/internal/domain"
)

// Config holds account settings for a run.
type Config struct {
	InitialCapital float64 // starting cash, > 0
	FeeRate        float64 // proportional fee on traded notional, >= 0
}

// Validate checks the configuration constraints.
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("initial capital %v must be > 0: %w", c.InitialCapital, domain.ErrInvalidParameter)
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 || math.IsNaN(c.FeeRate) {
		return fmt.Errorf("fee rate %v must be in [0, 1): %w", c.FeeRate, domain.ErrInvalidParameter)
	}
	return nil
}

// Result holds the output of a single backtest run.
type Result struct {
	Curve  domain.EquityCurve
	Trades []domain.Trade
	Fees   float64
}

// Backtester simulates an all-in account that follows a SignalSeries. It is
// stateless between runs and safe for concurrent use.
type Backtester struct {
	cfg Config
}

// New creates a Backtester after validating cfg.
func New(cfg Config) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backtester{cfg: cfg}, nil
}

// Config returns the account settings.
func (bt *Backtester) Config() Config { return bt.cfg }

// Run backtests a single-instrument signal series.
func (bt *Backtester) Run(series *domain.PriceSeries, sig *domain.SignalSeries) (*Result, error) {
	return bt.simulate([]*domain.PriceSeries{series}, sig)
}

// RunPair backtests a spread signal series over legs a and b. A spread
// position of w holds n units of a and -Hedge*n units of b.
func (bt *Backtester) RunPair(a, b *domain.PriceSeries, sig *domain.SignalSeries) (*Result, error) {
	return bt.simulate([]*domain.PriceSeries{a, b}, sig)
}

// RunLegs dispatches to Run or RunPair by the number of legs.
func (bt *Backtester) RunLegs(legs []*domain.PriceSeries, sig *domain.SignalSeries) (*Result, error) {
	switch len(legs) {
	case 1:
		return bt.Run(legs[0], sig)
	case 2:
		return bt.RunPair(legs[0], legs[1], sig)
	default:
		return nil, fmt.Errorf("backtest of %d legs: %w", len(legs), domain.ErrInvalidParameter)
	}
}

func (bt *Backtester) simulate(legs []*domain.PriceSeries, sig *domain.SignalSeries) (*Result, error) {
	if err := checkInputs(legs, sig); err != nil {
		return nil, err
	}

	n := legs[0].Len()
	acct := newAccount(bt.cfg, legs)
	curve := make(domain.EquityCurve, n)

	for t := 0; t < n; t++ {
		if t > 0 {
			target, hedge := sig.Targets[t-1], 1.0
			if sig.Hedge != nil {
				hedge = sig.Hedge[t-1]
			}
			if target = clamp(target); target != acct.target && acct.canTrade(t) {
				acct.rebalance(t, target, hedge)
			}
		}
		acct.mark(t)
		curve[t] = domain.EquityPoint{Time: legs[0].Bar(t).Timestamp, Equity: acct.equity()}
	}

	return &Result{
		Curve:  curve,
		Trades: acct.finish(n - 1),
		Fees:   acct.fees,
	}, nil
}

func checkInputs(legs []*domain.PriceSeries, sig *domain.SignalSeries) error {
	if sig == nil || sig.Len() == 0 {
		return fmt.Errorf("empty signal series: %w", domain.ErrInsufficientData)
	}
	for _, l := range legs {
		if l == nil || l.Len() == 0 {
			return fmt.Errorf("empty price series: %w", domain.ErrInsufficientData)
		}
	}
	n := legs[0].Len()
	if sig.Len() != n || len(sig.Times) != n {
		return fmt.Errorf("%d signals for %d bars: %w", sig.Len(), n, domain.ErrMisalignedData)
	}
	if sig.Hedge != nil && len(sig.Hedge) != n {
		return fmt.Errorf("%d hedge ratios for %d bars: %w", len(sig.Hedge), n, domain.ErrMisalignedData)
	}
	for _, l := range legs[1:] {
		if !legs[0].SameTimes(l) {
			return fmt.Errorf("%s and %s timestamps differ: %w", legs[0].Symbol(), l.Symbol(), domain.ErrMisalignedData)
		}
	}
	for i, ts := range sig.Times {
		if !ts.Equal(legs[0].Bar(i).Timestamp) {
			return fmt.Errorf("signal %d at %s does not match bar time: %w", i, ts, domain.ErrMisalignedData)
		}
	}
	return nil
}

func clamp(w float64) float64 {
	switch {
	case math.IsNaN(w):
		return 0
	case w > 1:
		return 1
	case w < -1:
		return -1
	}
	return w
}
