package builtins

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// KindMeanReversion is the registry key of MeanReversion.
const KindMeanReversion = "mean-reversion"

var _ strategy.Strategy = (*MeanReversion)(nil)
var _ strategy.Factory = MeanReversionFactory{}

// MeanReversionConfig parameterises MeanReversion.
type MeanReversionConfig struct {
	Window int     // bars in the rolling window, >= 2
	K      float64 // band width in standard deviations, > 0
}

// Validate checks the configuration constraints.
func (c MeanReversionConfig) Validate() error {
	if c.Window < 2 {
		return fmt.Errorf("mean-reversion window %d < 2: %w", c.Window, domain.ErrInvalidParameter)
	}
	if !(c.K > 0) {
		return fmt.Errorf("mean-reversion k %v must be > 0: %w", c.K, domain.ErrInvalidParameter)
	}
	return nil
}

// MeanReversion trades Bollinger-style bands: long below mean - K*std, short
// above mean + K*std, flat inside the bands.
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion validates cfg and returns the strategy.
func NewMeanReversion(cfg MeanReversionConfig) (*MeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MeanReversion{cfg: cfg}, nil
}

// Name returns "mean-reversion".
func (m *MeanReversion) Name() string { return KindMeanReversion }

// Legs returns 1.
func (m *MeanReversion) Legs() int { return 1 }

// GenerateSignals computes the band signal from the rolling mean and sample
// standard deviation of the last Window closes. The target is flat until the
// window is full and whenever the deviation is zero.
func (m *MeanReversion) GenerateSignals(legs ...*domain.PriceSeries) (*domain.SignalSeries, error) {
	if err := strategy.CheckLegs(1, m.cfg.Window, legs); err != nil {
		return nil, err
	}
	raw := legs[0].Closes()
	valid := validMask(raw)
	closes := fillForward(raw)

	sig := domain.NewSignalSeries(legs[0].Times())
	prev := 0.0
	for t := range closes {
		if !valid[t] {
			sig.Targets[t] = prev
			continue
		}
		target := 0.0
		if w := window(closes, t, m.cfg.Window); w != nil {
			mean, std := stat.MeanStdDev(w, nil)
			if std > 0 {
				switch c := closes[t]; {
				case c > mean+m.cfg.K*std:
					target = -1
				case c < mean-m.cfg.K*std:
					target = 1
				}
			}
		}
		sig.Targets[t] = target
		prev = target
	}
	return sig, nil
}

// MeanReversionFactory builds MeanReversion from "window" and "k".
type MeanReversionFactory struct{}

func (MeanReversionFactory) Kind() string { return KindMeanReversion }
func (MeanReversionFactory) Legs() int    { return 1 }

// ParameterSpace searches window 5..100 step 5 and k 0.5..3.0 step 0.5.
func (MeanReversionFactory) ParameterSpace() []param.Spec {
	return []param.Spec{
		{Name: "window", Kind: param.Int, Default: 20, Min: 5, Max: 100, Step: 5},
		{Name: "k", Kind: param.Float, Default: 2.0, Min: 0.5, Max: 3.0, Step: 0.5},
	}
}

func (f MeanReversionFactory) Validate(set param.Set) error {
	cfg, err := f.config(set)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func (f MeanReversionFactory) New(set param.Set) (strategy.Strategy, error) {
	cfg, err := f.config(set)
	if err != nil {
		return nil, err
	}
	return NewMeanReversion(cfg)
}

func (MeanReversionFactory) config(set param.Set) (MeanReversionConfig, error) {
	window, err := set.Int("window")
	if err != nil {
		return MeanReversionConfig{}, err
	}
	k, err := set.Float("k")
	if err != nil {
		return MeanReversionConfig{}, err
	}
	return MeanReversionConfig{Window: window, K: k}, nil
}
