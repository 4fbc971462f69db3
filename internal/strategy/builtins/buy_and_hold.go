// Package builtins provides built-in strategy implementations: buy-and-hold,
// mean reversion, moving-average crossover and pairs trading.
package builtins

import (
	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// KindBuyAndHold is the registry key of BuyAndHold.
const KindBuyAndHold = "buy-and-hold"

// Compile-time interface checks.
var _ strategy.Strategy = (*BuyAndHold)(nil)
var _ strategy.Factory = BuyAndHoldFactory{}

// BuyAndHold is fully long on every bar.
type BuyAndHold struct{}

// Name returns "buy-and-hold".
func (BuyAndHold) Name() string { return KindBuyAndHold }

// Legs returns 1.
func (BuyAndHold) Legs() int { return 1 }

// GenerateSignals returns +1 for every bar.
func (BuyAndHold) GenerateSignals(legs ...*domain.PriceSeries) (*domain.SignalSeries, error) {
	if err := strategy.CheckLegs(1, 1, legs); err != nil {
		return nil, err
	}
	sig := domain.NewSignalSeries(legs[0].Times())
	for i := range sig.Targets {
		sig.Targets[i] = 1
	}
	return sig, nil
}

// BuyAndHoldFactory builds BuyAndHold. It has no parameters.
type BuyAndHoldFactory struct{}

func (BuyAndHoldFactory) Kind() string                 { return KindBuyAndHold }
func (BuyAndHoldFactory) Legs() int                    { return 1 }
func (BuyAndHoldFactory) ParameterSpace() []param.Spec { return nil }
func (BuyAndHoldFactory) Validate(_ param.Set) error   { return nil }

func (BuyAndHoldFactory) New(_ param.Set) (strategy.Strategy, error) {
	return &BuyAndHold{}, nil
}
