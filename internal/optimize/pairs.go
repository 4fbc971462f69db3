package optimize

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// ---------------------------------------------------------------------------
// Pair filters
// ---------------------------------------------------------------------------

// PairFilter screens a candidate pair before any backtest is run. The legs
// are aligned on common timestamps.
type PairFilter interface {
	// Name identifies the filter in logs and rejections.
	Name() string

	// Check returns whether the pair passes and the statistic it was judged
	// on.
	Check(a, b *domain.PriceSeries) (pass bool, statistic float64, err error)

	// Reason explains why a pair with statistic failed Check.
	Reason(statistic float64) string
}

// Compile-time interface checks.
var _ PairFilter = CorrelationFilter{}
var _ PairFilter = CointegrationFilter{}
var _ PairFilter = AcceptAll{}

// DefaultMinCorrelation is the correlation threshold of the default filter.
const DefaultMinCorrelation = 0.7

// CorrelationFilter passes pairs whose close prices have Pearson
// correlation of at least Min.
type CorrelationFilter struct {
	Min float64
}

func (f CorrelationFilter) Name() string { return "correlation" }

func (f CorrelationFilter) Check(a, b *domain.PriceSeries) (bool, float64, error) {
	xa, xb, err := validCloses(a, b)
	if err != nil {
		return false, 0, err
	}
	c := stat.Correlation(xa, xb, nil)
	if math.IsNaN(c) {
		return false, 0, nil
	}
	return c >= f.Min, c, nil
}

func (f CorrelationFilter) Reason(c float64) string {
	return fmt.Sprintf("correlation %.4f below %g", c, f.Min)
}

// DefaultADFCritical approximates the 5% Engle-Granger critical value for two
// series.
const DefaultADFCritical = -3.34

// CointegrationFilter runs an Engle-Granger test: regress A on B, then an
// ADF regression without lags on the residuals. Pairs pass when the ADF
// t-statistic is below Critical.
type CointegrationFilter struct {
	Critical float64
}

func (f CointegrationFilter) Name() string { return "cointegration" }

func (f CointegrationFilter) Check(a, b *domain.PriceSeries) (bool, float64, error) {
	xa, xb, err := validCloses(a, b)
	if err != nil {
		return false, 0, err
	}
	alpha, beta := stat.LinearRegression(xb, xa, nil, false)
	resid := make([]float64, len(xa))
	for i := range xa {
		resid[i] = xa[i] - alpha - beta*xb[i]
	}
	tstat := adfStatistic(resid)
	if math.IsNaN(tstat) {
		return false, 0, nil
	}
	return tstat < f.Critical, tstat, nil
}

func (f CointegrationFilter) Reason(tstat float64) string {
	return fmt.Sprintf("ADF statistic %.4f not below critical %g", tstat, f.Critical)
}

// adfStatistic regresses diff(r) on lagged r through the origin and returns
// the t-statistic of the slope.
func adfStatistic(r []float64) float64 {
	n := len(r) - 1
	if n < 3 {
		return math.NaN()
	}
	lag := r[:n]
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = r[i+1] - r[i]
	}
	_, gamma := stat.LinearRegression(lag, diff, nil, true)

	var sxx, sse float64
	for i := range lag {
		e := diff[i] - gamma*lag[i]
		sse += e * e
		sxx += lag[i] * lag[i]
	}
	if sxx == 0 {
		return math.NaN()
	}
	se := math.Sqrt(sse / float64(n-1) / sxx)
	if se == 0 {
		return math.Inf(-1)
	}
	return gamma / se
}

// AcceptAll passes every pair.
type AcceptAll struct{}

func (AcceptAll) Name() string { return "none" }

func (AcceptAll) Check(_, _ *domain.PriceSeries) (bool, float64, error) { return true, 0, nil }

func (AcceptAll) Reason(float64) string { return "" }

func validCloses(a, b *domain.PriceSeries) ([]float64, []float64, error) {
	ca, cb := a.Closes(), b.Closes()
	xa := make([]float64, 0, len(ca))
	xb := make([]float64, 0, len(cb))
	for i := range ca {
		if domain.ValidPrice(ca[i]) && domain.ValidPrice(cb[i]) {
			xa = append(xa, ca[i])
			xb = append(xb, cb[i])
		}
	}
	if len(xa) < 3 {
		return nil, nil, fmt.Errorf("%s/%s: %d usable bars: %w", a.Symbol(), b.Symbol(), len(xa), domain.ErrInsufficientData)
	}
	return xa, xb, nil
}

// ---------------------------------------------------------------------------
// Pairs search
// ---------------------------------------------------------------------------

type alignedPair struct {
	pair domain.Pair
	legs []*domain.PriceSeries
	bpy  float64
}

// OptimizePairs enumerates every unordered pair of universe in order (i < j),
// aligns each on common timestamps, screens it with filter and searches grid
// over the accepted pairs. Rejected pairs are reported in Outcome.Rejected
// and never backtested. A nil filter selects CorrelationFilter with
// DefaultMinCorrelation.
func (o *Optimizer) OptimizePairs(ctx context.Context, f strategy.Factory, grid *param.Grid, universe []*domain.PriceSeries, filter PairFilter) (*Outcome, error) {
	if f.Legs() != 2 {
		return nil, fmt.Errorf("%s trades %d legs, pairs search needs 2: %w", f.Kind(), f.Legs(), domain.ErrInvalidParameter)
	}
	if len(universe) < 2 {
		return nil, fmt.Errorf("pairs universe of %d instruments: %w", len(universe), domain.ErrInsufficientData)
	}
	if filter == nil {
		filter = CorrelationFilter{Min: DefaultMinCorrelation}
	}
	arena, err := grid.Arena()
	if err != nil {
		return &Outcome{}, err
	}

	var pairs []alignedPair
	var rejected []Rejection
	for i := 0; i < len(universe); i++ {
		for j := i + 1; j < len(universe); j++ {
			if err := ctx.Err(); err != nil {
				return &Outcome{Rejected: rejected}, err
			}
			p := domain.Pair{A: universe[i].Symbol(), B: universe[j].Symbol()}
			a, b, err := domain.AlignPair(universe[i], universe[j])
			if err != nil {
				rejected = append(rejected, Rejection{Pair: p, Reason: err.Error()})
				continue
			}
			pass, statistic, err := filter.Check(a, b)
			if err != nil {
				rejected = append(rejected, Rejection{Pair: p, Statistic: statistic, Reason: err.Error()})
				continue
			}
			if !pass {
				o.logger.Info("pair rejected", "pair", p.String(), "filter", filter.Name(), "statistic", statistic)
				rejected = append(rejected, Rejection{
					Pair:      p,
					Statistic: statistic,
					Reason:    filter.Reason(statistic),
				})
				continue
			}
			pairs = append(pairs, alignedPair{pair: p, legs: []*domain.PriceSeries{a, b}, bpy: o.barsPerYear(a)})
		}
	}

	o.logger.Info("pairs optimization starting",
		"strategy", f.Kind(),
		"universe", len(universe),
		"acceptedPairs", len(pairs),
		"rejectedPairs", len(rejected),
		"paramSets", len(arena),
		"workers", o.opts.Workers,
	)

	total := len(pairs) * len(arena)
	out, err := o.search(ctx, total, func(i int) (*Result, error) {
		ap := pairs[i/len(arena)]
		r, err := o.evaluate(f, arena[i%len(arena)], ap.bpy, ap.legs)
		if err != nil {
			return nil, err
		}
		pair := ap.pair
		r.Pair = &pair
		return r, nil
	})
	out.Rejected = rejected
	return o.finish(f, out, err)
}
