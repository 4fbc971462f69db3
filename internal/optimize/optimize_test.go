package optimize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stratopt/internal/backtest"
	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
	"stratopt/internal/strategy/builtins"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func series(t *testing.T, symbol string, n int, f func(i int) float64) *domain.PriceSeries {
	t.Helper()
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)
	closes := make([]float64, n)
	for i := range closes {
		times[i] = start.AddDate(0, 0, i)
		closes[i] = f(i)
	}
	s, err := domain.SeriesFromCloses(symbol, times, closes)
	if err != nil {
		t.Fatalf("SeriesFromCloses(%s): %v", symbol, err)
	}
	return s
}

func wave(i int) float64 {
	x := float64(i)
	return 100 + 10*math.Sin(x/6) + 0.05*x
}

func newOptimizer(t *testing.T, opts Options) *Optimizer {
	t.Helper()
	if opts.Backtest.InitialCapital == 0 {
		opts.Backtest = backtest.Config{InitialCapital: 10000, FeeRate: 0.001}
	}
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	o, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func smaGrid(t *testing.T) *param.Grid {
	t.Helper()
	f := builtins.SMACrossFactory{}
	g, err := param.NewGrid([]param.Spec{
		{Name: "fast", Kind: param.Int, Min: 2, Max: 10, Step: 2},
		{Name: "slow", Kind: param.Int, Min: 5, Max: 30, Step: 5},
		{Name: "allow_short", Kind: param.Bool, Values: []any{false, true}},
	}, f.Validate)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

// ---------------------------------------------------------------------------
// Single-instrument search
// ---------------------------------------------------------------------------

func TestOptimizeDeterministicAcrossWorkers(t *testing.T) {
	s := series(t, "SPY", 250, wave)
	grid := smaGrid(t)

	var outs []*Outcome
	for _, workers := range []int{1, 3, 8} {
		o := newOptimizer(t, Options{Workers: workers})
		out, err := o.Optimize(context.Background(), builtins.SMACrossFactory{}, grid, s)
		if err != nil {
			t.Fatalf("Optimize(workers=%d): %v", workers, err)
		}
		outs = append(outs, out)
	}

	ref := outs[0]
	if ref.Best == nil {
		t.Fatal("Best is nil")
	}
	for i, out := range outs[1:] {
		if out.Best.Index != ref.Best.Index || out.Best.Score != ref.Best.Score {
			t.Errorf("run %d best = #%d %v, want #%d %v", i+1, out.Best.Index, out.Best.Score, ref.Best.Index, ref.Best.Score)
		}
		if out.Best.Params.String() != ref.Best.Params.String() {
			t.Errorf("run %d best params = %s, want %s", i+1, out.Best.Params, ref.Best.Params)
		}
		if len(out.Ranked) != len(ref.Ranked) {
			t.Fatalf("run %d ranked %d results, want %d", i+1, len(out.Ranked), len(ref.Ranked))
		}
		for k := range ref.Ranked {
			if out.Ranked[k].Index != ref.Ranked[k].Index {
				t.Errorf("run %d ranked[%d] = #%d, want #%d", i+1, k, out.Ranked[k].Index, ref.Ranked[k].Index)
				break
			}
		}
	}
	if ref.Ranked[0].Index != ref.Best.Index {
		t.Errorf("Ranked[0] = #%d, Best = #%d", ref.Ranked[0].Index, ref.Best.Index)
	}
	for k := 1; k < len(ref.Ranked); k++ {
		if better(&ref.Ranked[k], &ref.Ranked[k-1]) {
			t.Errorf("Ranked[%d] outranks Ranked[%d]", k, k-1)
		}
	}
}

func TestOptimizeEvaluatesOnlyValidPoints(t *testing.T) {
	s := series(t, "SPY", 120, wave)
	grid := smaGrid(t)
	arena, err := grid.Arena()
	if err != nil {
		t.Fatalf("Arena: %v", err)
	}
	o := newOptimizer(t, Options{Workers: 4})
	out, err := o.Optimize(context.Background(), builtins.SMACrossFactory{}, grid, s)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if out.Total != len(arena) {
		t.Errorf("Total = %d, want %d", out.Total, len(arena))
	}
	if out.Evaluated+out.Skipped != out.Total {
		t.Errorf("Evaluated %d + Skipped %d != Total %d", out.Evaluated, out.Skipped, out.Total)
	}
	for _, r := range out.Ranked {
		fast, _ := r.Params.Int("fast")
		slow, _ := r.Params.Int("slow")
		if fast >= slow {
			t.Errorf("ranked result with fast %d >= slow %d", fast, slow)
		}
		if r.Curve != nil || r.Trades != nil {
			t.Errorf("ranked result #%d kept its curve without KeepCurves", r.Index)
		}
	}
	if out.Best.Curve == nil {
		t.Error("Best has no equity curve")
	}
}

func TestOptimizeTopNAndProgress(t *testing.T) {
	s := series(t, "SPY", 200, wave)
	grid := smaGrid(t)

	var calls atomic.Int64
	var last atomic.Int64
	o := newOptimizer(t, Options{
		Workers: 4,
		TopN:    3,
		OnProgress: func(done, total int) {
			calls.Add(1)
			if int64(done) > last.Load() {
				last.Store(int64(done))
			}
		},
	})
	out, err := o.Optimize(context.Background(), builtins.SMACrossFactory{}, grid, s)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(out.Ranked) != 3 {
		t.Errorf("len(Ranked) = %d, want 3", len(out.Ranked))
	}
	if got := int(calls.Load()); got != out.Total {
		t.Errorf("progress called %d times, want %d", got, out.Total)
	}
	if got := int(last.Load()); got != out.Total {
		t.Errorf("final progress = %d, want %d", got, out.Total)
	}
}

func TestOptimizeNoValidCandidate(t *testing.T) {
	// Every slow period exceeds the series length.
	s := series(t, "SPY", 12, wave)
	g, err := param.NewGrid([]param.Spec{
		{Name: "fast", Kind: param.Int, Values: []any{2, 3}},
		{Name: "slow", Kind: param.Int, Values: []any{20, 30}},
		{Name: "allow_short", Kind: param.Bool, Values: []any{false}},
	}, builtins.SMACrossFactory{}.Validate)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	o := newOptimizer(t, Options{Workers: 2})
	out, err := o.Optimize(context.Background(), builtins.SMACrossFactory{}, g, s)
	if !errors.Is(err, domain.ErrNoValidCandidate) {
		t.Fatalf("error = %v, want ErrNoValidCandidate", err)
	}
	if out == nil || out.Best != nil {
		t.Fatalf("outcome = %+v, want non-nil with nil Best", out)
	}
	if out.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", out.Skipped)
	}
}

func TestOptimizeEmptyGrid(t *testing.T) {
	s := series(t, "SPY", 50, wave)
	g, err := param.NewGrid([]param.Spec{
		{Name: "fast", Kind: param.Int, Values: []any{30}},
		{Name: "slow", Kind: param.Int, Values: []any{10}},
		{Name: "allow_short", Kind: param.Bool, Values: []any{false}},
	}, builtins.SMACrossFactory{}.Validate)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	o := newOptimizer(t, Options{})
	if _, err := o.Optimize(context.Background(), builtins.SMACrossFactory{}, g, s); !errors.Is(err, domain.ErrNoValidCandidate) {
		t.Errorf("error = %v, want ErrNoValidCandidate", err)
	}
}

func TestOptimizeCancelled(t *testing.T) {
	s := series(t, "SPY", 200, wave)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newOptimizer(t, Options{Workers: 2})
	out, err := o.Optimize(ctx, builtins.SMACrossFactory{}, smaGrid(t), s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if out == nil || out.Evaluated != 0 {
		t.Errorf("cancelled outcome = %+v, want nothing evaluated", out)
	}
}

func TestOptimizeCancelledMidway(t *testing.T) {
	s := series(t, "SPY", 200, wave)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o := newOptimizer(t, Options{
		Workers: 1,
		OnProgress: func(done, total int) {
			if done == 5 {
				cancel()
			}
		},
	})
	out, err := o.Optimize(ctx, builtins.SMACrossFactory{}, smaGrid(t), s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if out.Evaluated+out.Skipped != 5 {
		t.Errorf("finished %d candidates before stopping, want 5", out.Evaluated+out.Skipped)
	}
}

// failingFactory produces strategies whose signal generation fails with err.
type failingFactory struct{ err error }

type failingStrategy struct{ err error }

func (f failingFactory) Kind() string { return "failing" }
func (f failingFactory) Legs() int    { return 1 }
func (f failingFactory) ParameterSpace() []param.Spec {
	return []param.Spec{{Name: "x", Kind: param.Int, Min: 1, Max: 4, Step: 1}}
}
func (f failingFactory) Validate(param.Set) error { return nil }
func (f failingFactory) New(param.Set) (strategy.Strategy, error) {
	return failingStrategy{err: f.err}, nil
}

func (s failingStrategy) Name() string { return "failing" }
func (s failingStrategy) Legs() int    { return 1 }
func (s failingStrategy) GenerateSignals(...*domain.PriceSeries) (*domain.SignalSeries, error) {
	return nil, s.err
}

func TestOptimizeFatalError(t *testing.T) {
	s := series(t, "SPY", 50, wave)
	f := failingFactory{err: fmt.Errorf("broken feed: %w", domain.ErrMisalignedData)}
	g, err := param.NewGrid(f.ParameterSpace(), nil)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	o := newOptimizer(t, Options{Workers: 2})
	if _, err := o.Optimize(context.Background(), f, g, s); !errors.Is(err, domain.ErrMisalignedData) {
		t.Errorf("error = %v, want ErrMisalignedData", err)
	}
}

func TestOptimizeLegCount(t *testing.T) {
	s := series(t, "SPY", 50, wave)
	o := newOptimizer(t, Options{})
	g, err := param.NewGrid(builtins.PairsFactory{}.ParameterSpace(), nil)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if _, err := o.Optimize(context.Background(), builtins.PairsFactory{}, g, s); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("pairs with one leg: error = %v, want ErrInvalidParameter", err)
	}
}

func TestEvaluate(t *testing.T) {
	s := series(t, "SPY", 60, func(i int) float64 { return 100 + float64(i) })
	o := newOptimizer(t, Options{Backtest: backtest.Config{InitialCapital: 1000}, Score: "total_return"})
	r, err := o.Evaluate(builtins.BuyAndHoldFactory{}, param.Set{}, s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.Metrics.TotalReturn <= 0 {
		t.Errorf("TotalReturn = %v, want > 0 on a rising series", r.Metrics.TotalReturn)
	}
	if r.Score != r.Metrics.TotalReturn {
		t.Errorf("Score = %v, want TotalReturn %v", r.Score, r.Metrics.TotalReturn)
	}
	if r.Metrics.BarsPerYear != 252 {
		t.Errorf("BarsPerYear = %v, want 252", r.Metrics.BarsPerYear)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := []Options{
		{Backtest: backtest.Config{InitialCapital: 0}},
		{Backtest: backtest.Config{InitialCapital: 100}, Score: "luck"},
		{Backtest: backtest.Config{InitialCapital: 100}, BarsPerYear: -1},
	}
	for i, opts := range cases {
		if _, err := New(opts); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("case %d: error = %v, want ErrInvalidParameter", i, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Ranking
// ---------------------------------------------------------------------------

func TestBetter(t *testing.T) {
	mk := func(idx int, score, ret float64) *Result {
		return &Result{Index: idx, Score: score, Metrics: domain.Metrics{TotalReturn: ret}}
	}
	cases := []struct {
		name string
		a, b *Result
		want bool
	}{
		{"higher score", mk(5, 1.2, 0), mk(1, 1.1, 0.5), true},
		{"tie on score, higher return", mk(5, 1, 0.3), mk(1, 1, 0.2), true},
		{"full tie, lower index", mk(1, 1, 0.2), mk(5, 1, 0.2), true},
		{"full tie, higher index", mk(5, 1, 0.2), mk(1, 1, 0.2), false},
		{"NaN loses to finite", mk(0, math.NaN(), 1), mk(1, -100, 0), false},
		{"finite beats NaN", mk(1, -100, 0), mk(0, math.NaN(), 1), true},
		{"anything beats nil", mk(9, math.NaN(), 0), nil, true},
		{"nil never wins", nil, mk(0, 0, 0), false},
	}
	for _, c := range cases {
		if got := better(c.a, c.b); got != c.want {
			t.Errorf("%s: better = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestScorerByName(t *testing.T) {
	m := domain.Metrics{SharpeRatio: 1.5, TotalReturn: 0.2, CalmarRatio: 3, MaxDrawdown: -0.1, AnnualizedReturn: 0.3}
	want := map[string]float64{
		"":                  1.5,
		"sharpe":            1.5,
		"total_return":      0.2,
		"annualized_return": 0.3,
		"calmar":            3,
		"max_drawdown":      -0.1,
	}
	for name, w := range want {
		s, err := ScorerByName(name)
		if err != nil {
			t.Fatalf("ScorerByName(%q): %v", name, err)
		}
		if got := s(m); got != w {
			t.Errorf("%q scored %v, want %v", name, got, w)
		}
	}
	if len(ScoreNames()) != 5 {
		t.Errorf("ScoreNames = %v", ScoreNames())
	}
}

// ---------------------------------------------------------------------------
// Pairs search
// ---------------------------------------------------------------------------

func pairsGrid(t *testing.T) *param.Grid {
	t.Helper()
	g, err := param.NewGrid([]param.Spec{
		{Name: "window", Kind: param.Int, Values: []any{10, 20}},
		{Name: "entry", Kind: param.Float, Values: []any{1.0, 2.0}},
		{Name: "exit", Kind: param.Float, Values: []any{0.5}},
		{Name: "hedge", Kind: param.String, Values: []any{"difference", "ols"}},
	}, builtins.PairsFactory{}.Validate)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func pairsUniverse(t *testing.T) []*domain.PriceSeries {
	a := series(t, "AAA", 200, wave)
	b := series(t, "BBB", 200, func(i int) float64 {
		return 0.5*wave(i) + 0.8*math.Sin(float64(i)*1.7)
	})
	c := series(t, "CCC", 200, func(i int) float64 {
		return 100 + 5*math.Sin(float64(i)*2.3)
	})
	return []*domain.PriceSeries{a, b, c}
}

func TestOptimizePairsFiltersBeforeBacktest(t *testing.T) {
	universe := pairsUniverse(t)
	o := newOptimizer(t, Options{Workers: 4})
	out, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), universe, CorrelationFilter{Min: 0.7})
	if err != nil {
		t.Fatalf("OptimizePairs: %v", err)
	}
	if len(out.Rejected) != 2 {
		t.Fatalf("Rejected = %+v, want AAA/CCC and BBB/CCC", out.Rejected)
	}
	for _, r := range out.Rejected {
		if r.Pair.B != "CCC" {
			t.Errorf("unexpected rejection %s", r.Pair)
		}
		if r.Statistic >= 0.7 {
			t.Errorf("%s rejected with correlation %v", r.Pair, r.Statistic)
		}
	}
	if out.Total != 8 {
		t.Errorf("Total = %d, want 8 (1 pair x 8 sets)", out.Total)
	}
	for _, r := range out.Ranked {
		if r.Pair == nil || r.Pair.String() != "AAA/BBB" {
			t.Errorf("ranked result #%d on pair %v, want AAA/BBB", r.Index, r.Pair)
		}
	}
	if out.Best.Pair == nil || out.Best.Pair.String() != "AAA/BBB" {
		t.Errorf("Best pair = %v, want AAA/BBB", out.Best.Pair)
	}
}

func TestOptimizePairsDeterministic(t *testing.T) {
	universe := pairsUniverse(t)
	var ref *Outcome
	for _, workers := range []int{1, 5} {
		o := newOptimizer(t, Options{Workers: workers})
		out, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), universe, AcceptAll{})
		if err != nil {
			t.Fatalf("OptimizePairs(workers=%d): %v", workers, err)
		}
		if out.Total != 24 {
			t.Errorf("Total = %d, want 24 (3 pairs x 8 sets)", out.Total)
		}
		if ref == nil {
			ref = out
			continue
		}
		if out.Best.Index != ref.Best.Index || *out.Best.Pair != *ref.Best.Pair {
			t.Errorf("best = #%d %s, want #%d %s", out.Best.Index, out.Best.Pair, ref.Best.Index, ref.Best.Pair)
		}
	}
}

func TestOptimizePairsAllRejected(t *testing.T) {
	universe := pairsUniverse(t)
	o := newOptimizer(t, Options{})
	out, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), universe, CorrelationFilter{Min: 1.01})
	if !errors.Is(err, domain.ErrNoValidCandidate) {
		t.Fatalf("error = %v, want ErrNoValidCandidate", err)
	}
	if len(out.Rejected) != 3 {
		t.Errorf("Rejected %d pairs, want 3", len(out.Rejected))
	}
}

func TestOptimizePairsMisaligned(t *testing.T) {
	a := series(t, "AAA", 50, wave)
	late := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	b, err := domain.SeriesFromCloses("BBB", []time.Time{late, late.AddDate(0, 0, 1)}, []float64{1, 2})
	if err != nil {
		t.Fatalf("SeriesFromCloses: %v", err)
	}
	o := newOptimizer(t, Options{})
	out, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), []*domain.PriceSeries{a, b}, AcceptAll{})
	if !errors.Is(err, domain.ErrNoValidCandidate) {
		t.Fatalf("error = %v, want ErrNoValidCandidate", err)
	}
	if len(out.Rejected) != 1 {
		t.Errorf("Rejected = %+v, want the non-overlapping pair", out.Rejected)
	}
}

func TestOptimizePairsArguments(t *testing.T) {
	universe := pairsUniverse(t)
	o := newOptimizer(t, Options{})
	if _, err := o.OptimizePairs(context.Background(), builtins.SMACrossFactory{}, smaGrid(t), universe, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("single-leg factory: error = %v, want ErrInvalidParameter", err)
	}
	if _, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), universe[:1], nil); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("one-instrument universe: error = %v, want ErrInsufficientData", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.OptimizePairs(ctx, builtins.PairsFactory{}, pairsGrid(t), universe, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

func TestCorrelationFilter(t *testing.T) {
	a := series(t, "A", 100, wave)
	b := series(t, "B", 100, func(i int) float64 { return 2*wave(i) + 3 })
	pass, c, err := CorrelationFilter{Min: 0.9}.Check(a, b)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !pass || math.Abs(c-1) > 1e-9 {
		t.Errorf("linear pair: pass=%v corr=%v, want true 1", pass, c)
	}

	inv := series(t, "C", 100, func(i int) float64 { return 300 - wave(i) })
	if pass, c, _ := (CorrelationFilter{Min: 0.9}).Check(a, inv); pass || c > -0.99 {
		t.Errorf("inverse pair: pass=%v corr=%v, want false -1", pass, c)
	}

	short := series(t, "D", 2, wave)
	if _, _, err := (CorrelationFilter{}).Check(short, short); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("two bars: error = %v, want ErrInsufficientData", err)
	}
}

func TestCointegrationFilter(t *testing.T) {
	// B follows a random-walk-like drift; A tracks it with a mean-reverting
	// residual, so the spread is stationary.
	drift := func(i int) float64 {
		x := float64(i)
		return 50 + 0.3*x + 4*math.Sin(x/17) + 3*math.Cos(x/29)
	}
	b := series(t, "B", 300, drift)
	a := series(t, "A", 300, func(i int) float64 {
		return 1.5*drift(i) + 10 + 0.5*math.Sin(float64(i)*2.1)
	})
	pass, stat, err := CointegrationFilter{Critical: DefaultADFCritical}.Check(a, b)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !pass {
		t.Errorf("stationary spread rejected, ADF = %v", stat)
	}

	// A residual that keeps growing is not stationary.
	c := series(t, "C", 300, func(i int) float64 {
		x := float64(i)
		return drift(i) + 0.00002*x*x*x
	})
	if pass, stat, _ := (CointegrationFilter{Critical: DefaultADFCritical}).Check(c, b); pass {
		t.Errorf("trending spread accepted, ADF = %v", stat)
	}
}

func TestRejectionReasons(t *testing.T) {
	universe := pairsUniverse(t)
	o := newOptimizer(t, Options{})
	out, err := o.OptimizePairs(context.Background(), builtins.PairsFactory{}, pairsGrid(t), universe, CointegrationFilter{Critical: -1000})
	if !errors.Is(err, domain.ErrNoValidCandidate) {
		t.Fatalf("error = %v, want ErrNoValidCandidate", err)
	}
	if len(out.Rejected) != 3 {
		t.Fatalf("Rejected %d pairs, want 3", len(out.Rejected))
	}
	for _, r := range out.Rejected {
		want := fmt.Sprintf("ADF statistic %.4f not below critical -1000", r.Statistic)
		if r.Reason != want {
			t.Errorf("%s reason = %q, want %q", r.Pair, r.Reason, want)
		}
	}

	if got := (CorrelationFilter{Min: 0.7}).Reason(0.25); got != "correlation 0.2500 below 0.7" {
		t.Errorf("correlation reason = %q", got)
	}
	if got := (CointegrationFilter{Critical: DefaultADFCritical}).Reason(-1.5); !strings.Contains(got, "not below critical -3.34") {
		t.Errorf("cointegration reason = %q", got)
	}
}

func TestADFStatistic(t *testing.T) {
	// Alternating residuals revert fully each bar: gamma = -2.
	alt := make([]float64, 40)
	for i := range alt {
		alt[i] = 1
		if i%2 == 1 {
			alt[i] = -1
		}
	}
	if got := adfStatistic(alt); !math.IsInf(got, -1) {
		t.Errorf("perfectly reverting series: ADF = %v, want -Inf", got)
	}
	if got := adfStatistic([]float64{1, 2, 3}); !math.IsNaN(got) {
		t.Errorf("three points: ADF = %v, want NaN", got)
	}
	if got := adfStatistic(make([]float64, 10)); !math.IsNaN(got) {
		t.Errorf("all-zero series: ADF = %v, want NaN", got)
	}
}
