package builtins

import (
	"fmt"
	"math"

	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// KindSMACross is the registry key of SMACross.
const KindSMACross = "sma-cross"

// Compile-time interface checks.
var _ strategy.Strategy = (*SMACross)(nil)
var _ strategy.Factory = SMACrossFactory{}

// CrossoverConfig parameterises SMACross.
type CrossoverConfig struct {
	Fast       int  // short moving-average period
	Slow       int  // long moving-average period, > Fast
	AllowShort bool // hold a short position while fast < slow
}

// Validate checks 1 <= Fast < Slow.
func (c CrossoverConfig) Validate() error {
	if c.Fast < 1 || c.Slow < 1 {
		return fmt.Errorf("sma-cross periods %d/%d must be >= 1: %w", c.Fast, c.Slow, domain.ErrInvalidParameter)
	}
	if c.Fast >= c.Slow {
		return fmt.Errorf("sma-cross fast %d must be < slow %d: %w", c.Fast, c.Slow, domain.ErrInvalidParameter)
	}
	return nil
}

// SMACross implements a simple moving average crossover strategy. It is long
// from the bar the fast SMA crosses above the slow SMA, and flat (or short,
// when allowed) while the fast SMA is below it.
type SMACross struct {
	cfg CrossoverConfig
}

// NewSMACross validates cfg and returns the strategy.
func NewSMACross(cfg CrossoverConfig) (*SMACross, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMACross{cfg: cfg}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return KindSMACross
}

// Legs returns 1.
func (s *SMACross) Legs() int { return 1 }

// GenerateSignals compares the fast and slow SMAs bar by bar. Equal averages
// keep the previous target; the target is flat until the slow SMA exists.
func (s *SMACross) GenerateSignals(legs ...*domain.PriceSeries) (*domain.SignalSeries, error) {
	if err := strategy.CheckLegs(1, s.cfg.Slow, legs); err != nil {
		return nil, err
	}
	raw := legs[0].Closes()
	valid := validMask(raw)
	closes := fillForward(raw)
	fast := sma(closes, s.cfg.Fast)
	slow := sma(closes, s.cfg.Slow)

	short := 0.0
	if s.cfg.AllowShort {
		short = -1
	}

	sig := domain.NewSignalSeries(legs[0].Times())
	prev := 0.0
	for t := range closes {
		target := prev
		switch {
		case !valid[t], math.IsNaN(slow[t]), math.IsNaN(fast[t]):
		case fast[t] > slow[t]:
			target = 1
		case fast[t] < slow[t]:
			target = short
		}
		sig.Targets[t] = target
		prev = target
	}
	return sig, nil
}

// SMACrossFactory builds SMACross from "fast", "slow" and "allow_short".
type SMACrossFactory struct{}

func (SMACrossFactory) Kind() string { return KindSMACross }
func (SMACrossFactory) Legs() int    { return 1 }

// ParameterSpace searches fast 5..50 step 5 and slow 20..200 step 20, long
// only.
func (SMACrossFactory) ParameterSpace() []param.Spec {
	return []param.Spec{
		{Name: "fast", Kind: param.Int, Default: 20, Min: 5, Max: 50, Step: 5},
		{Name: "slow", Kind: param.Int, Default: 50, Min: 20, Max: 200, Step: 20},
		{Name: "allow_short", Kind: param.Bool, Default: false, Values: []any{false}},
	}
}

func (f SMACrossFactory) Validate(set param.Set) error {
	cfg, err := f.config(set)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func (f SMACrossFactory) New(set param.Set) (strategy.Strategy, error) {
	cfg, err := f.config(set)
	if err != nil {
		return nil, err
	}
	return NewSMACross(cfg)
}

func (SMACrossFactory) config(set param.Set) (CrossoverConfig, error) {
	fast, err := set.Int("fast")
	if err != nil {
		return CrossoverConfig{}, err
	}
	slow, err := set.Int("slow")
	if err != nil {
		return CrossoverConfig{}, err
	}
	cfg := CrossoverConfig{Fast: fast, Slow: slow}
	if _, ok := set["allow_short"]; ok {
		if cfg.AllowShort, err = set.Bool("allow_short"); err != nil {
			return CrossoverConfig{}, err
		}
	}
	return cfg, nil
}
