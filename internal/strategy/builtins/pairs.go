package builtins

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// KindPairs is the registry key of Pairs.
const KindPairs = "pairs-trading"

var _ strategy.Strategy = (*Pairs)(nil)
var _ strategy.Factory = PairsFactory{}

// HedgeMethod selects how the spread between the two legs is formed.
type HedgeMethod string

const (
	// HedgeDifference uses A - B with one unit of B per unit of A.
	HedgeDifference HedgeMethod = "difference"
	// HedgeLogRatio uses ln A - ln B with dollar-neutral legs.
	HedgeLogRatio HedgeMethod = "log_ratio"
	// HedgeOLS regresses A on B over the window and trades the residual
	// with beta units of B per unit of A.
	HedgeOLS HedgeMethod = "ols"
)

// PairsConfig parameterises Pairs.
type PairsConfig struct {
	Window int
	Entry  float64 // |z| above which a position is opened
	Exit   float64 // |z| below which the position is closed
	Hedge  HedgeMethod
}

// Validate checks window >= 2 and entry > exit >= 0.
func (c PairsConfig) Validate() error {
	if c.Window < 2 {
		return fmt.Errorf("pairs window %d < 2: %w", c.Window, domain.ErrInvalidParameter)
	}
	if !(c.Entry > 0) || c.Exit < 0 {
		return fmt.Errorf("pairs thresholds entry %v exit %v: %w", c.Entry, c.Exit, domain.ErrInvalidParameter)
	}
	if c.Entry <= c.Exit {
		return fmt.Errorf("pairs entry %v must exceed exit %v: %w", c.Entry, c.Exit, domain.ErrInvalidParameter)
	}
	switch c.Hedge {
	case HedgeDifference, HedgeLogRatio, HedgeOLS:
	default:
		return fmt.Errorf("pairs hedge %q: %w", c.Hedge, domain.ErrInvalidParameter)
	}
	return nil
}

// Pairs trades the z-score of the spread between two aligned legs. It goes
// long the spread (long A, short B) when z < -Entry, short when z > Entry,
// exits when |z| < Exit and otherwise holds.
type Pairs struct {
	cfg PairsConfig
}

// NewPairs validates cfg and returns the strategy.
func NewPairs(cfg PairsConfig) (*Pairs, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pairs{cfg: cfg}, nil
}

// Name returns "pairs-trading".
func (p *Pairs) Name() string { return KindPairs }

// Legs returns 2.
func (p *Pairs) Legs() int { return 2 }

// GenerateSignals returns spread targets together with the hedge ratio in
// force at each bar.
func (p *Pairs) GenerateSignals(legs ...*domain.PriceSeries) (*domain.SignalSeries, error) {
	if err := strategy.CheckLegs(2, p.cfg.Window, legs); err != nil {
		return nil, err
	}
	rawA, rawB := legs[0].Closes(), legs[1].Closes()
	validA, validB := validMask(rawA), validMask(rawB)
	a, b := fillForward(rawA), fillForward(rawB)

	sig := domain.NewSignalSeries(legs[0].Times())
	sig.Hedge = make([]float64, len(a))

	spread := make([]float64, p.cfg.Window)
	prev, prevHedge := 0.0, 1.0
	for t := range a {
		if !validA[t] || !validB[t] {
			sig.Targets[t], sig.Hedge[t] = prev, prevHedge
			continue
		}
		wa, wb := window(a, t, p.cfg.Window), window(b, t, p.cfg.Window)
		if wa == nil || wb == nil {
			sig.Targets[t], sig.Hedge[t] = 0, p.initialHedge(a[t], b[t])
			prevHedge = sig.Hedge[t]
			continue
		}

		hedge, ok := p.fillSpread(spread, wa, wb)
		if !ok {
			hedge = prevHedge
		}
		mean, std := stat.MeanStdDev(spread, nil)
		z := 0.0
		if ok {
			z = zscore(spread[len(spread)-1], mean, std)
		}

		target := prev
		switch {
		case z > p.cfg.Entry:
			target = -1
		case z < -p.cfg.Entry:
			target = 1
		case math.Abs(z) < p.cfg.Exit:
			target = 0
		}
		sig.Targets[t], sig.Hedge[t] = target, hedge
		prev, prevHedge = target, hedge
	}
	return sig, nil
}

// fillSpread writes the spread over the window into dst and returns the hedge
// ratio at the window's last bar. ok is false when the regression is
// degenerate.
func (p *Pairs) fillSpread(dst, wa, wb []float64) (hedge float64, ok bool) {
	last := len(wa) - 1
	switch p.cfg.Hedge {
	case HedgeLogRatio:
		for i := range wa {
			dst[i] = math.Log(wa[i]) - math.Log(wb[i])
		}
		return wa[last] / wb[last], true
	case HedgeOLS:
		alpha, beta := stat.LinearRegression(wb, wa, nil, false)
		if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
			for i := range dst {
				dst[i] = 0
			}
			return 0, false
		}
		for i := range wa {
			dst[i] = wa[i] - alpha - beta*wb[i]
		}
		return beta, true
	default:
		for i := range wa {
			dst[i] = wa[i] - wb[i]
		}
		return 1, true
	}
}

func (p *Pairs) initialHedge(a, b float64) float64 {
	if p.cfg.Hedge == HedgeLogRatio && domain.ValidPrice(a) && domain.ValidPrice(b) {
		return a / b
	}
	return 1
}

// PairsFactory builds Pairs from "window", "entry", "exit" and "hedge".
type PairsFactory struct{}

func (PairsFactory) Kind() string { return KindPairs }
func (PairsFactory) Legs() int    { return 2 }

// ParameterSpace searches window 10..100 step 10 with the entry/exit
// threshold choices; the hedge method is fixed to OLS unless overridden.
func (PairsFactory) ParameterSpace() []param.Spec {
	return []param.Spec{
		{Name: "window", Kind: param.Int, Default: 50, Min: 10, Max: 100, Step: 10},
		{Name: "entry", Kind: param.Float, Default: 2.0, Values: []any{1.0, 1.5, 2.0, 2.5, 3.0}},
		{Name: "exit", Kind: param.Float, Default: 0.5, Values: []any{0.1, 0.5, 1.0, 1.5}},
		{Name: "hedge", Kind: param.String, Default: string(HedgeOLS), Values: []any{string(HedgeOLS)}},
	}
}

func (f PairsFactory) Validate(set param.Set) error {
	cfg, err := f.config(set)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func (f PairsFactory) New(set param.Set) (strategy.Strategy, error) {
	cfg, err := f.config(set)
	if err != nil {
		return nil, err
	}
	return NewPairs(cfg)
}

func (PairsFactory) config(set param.Set) (PairsConfig, error) {
	window, err := set.Int("window")
	if err != nil {
		return PairsConfig{}, err
	}
	entry, err := set.Float("entry")
	if err != nil {
		return PairsConfig{}, err
	}
	exit, err := set.Float("exit")
	if err != nil {
		return PairsConfig{}, err
	}
	cfg := PairsConfig{Window: window, Entry: entry, Exit: exit, Hedge: HedgeOLS}
	if _, ok := set["hedge"]; ok {
		h, err := set.Str("hedge")
		if err != nil {
			return PairsConfig{}, err
		}
		cfg.Hedge = HedgeMethod(h)
	}
	return cfg, nil
}
