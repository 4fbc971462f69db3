// Package engine coordinates price loading, backtesting, parameter search
// and result persistence for the three run modes: a single configuration, a
// parameter search over fixed symbols, and a pairs universe search.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stratopt/internal/backtest"
	"stratopt/internal/domain"
	"stratopt/internal/marketdata"
	"stratopt/internal/optimize"
	"stratopt/internal/param"
	"stratopt/internal/store"
	"stratopt/internal/strategy"
)

// Run modes recorded with persisted results.
const (
	ModeBacktest = "backtest"
	ModeOptimize = "optimize"
	ModePairs    = "pairs"
)

// Options configures an Engine.
type Options struct {
	Backtest    backtest.Config
	BarsPerYear float64
	Score       string
	Workers     int // optimizer goroutines
	TopN        int // ranked results kept per search
	DataWorkers int // concurrent price loads for a pairs universe

	OnProgress func(done, total int)
	Logger     *slog.Logger
}

// Engine runs strategies from a registry against a price source and saves a
// summary of every finished run to a result store.
type Engine struct {
	registry *strategy.Registry
	source   marketdata.Source
	results  store.ResultStore // nil disables persistence
	opt      *optimize.Optimizer
	opts     Options
	log      *slog.Logger
}

// Request describes a run over fixed symbols.
type Request struct {
	Strategy string
	Symbols  []string
	Range    marketdata.DateRange
	Params   param.Set              // fixed values; others use defaults or are searched
	Ranges   map[string]param.Range // search domain overrides
}

// PairsRequest describes a pairs universe search.
type PairsRequest struct {
	Strategy string
	Universe []string // empty lists every symbol the source holds
	TopN     int      // universe truncation, 0 keeps all
	Range    marketdata.DateRange
	Filter   optimize.PairFilter
	Params   param.Set
	Ranges   map[string]param.Range
	Optimize bool // false evaluates only the configured parameter set
}

// Report is the presentable result of any run mode. Search is nil for a
// single-configuration run.
type Report struct {
	ID       string               `json:"id,omitempty"`
	Mode     string               `json:"mode"`
	Strategy string               `json:"strategy"`
	Symbols  []string             `json:"symbols"`
	Pair     *domain.Pair         `json:"pair,omitempty"`
	Range    marketdata.DateRange `json:"-"`
	Params   param.Set            `json:"params"`
	Score    float64              `json:"score"`
	Metrics  domain.Metrics       `json:"metrics"`
	Curve    domain.EquityCurve   `json:"-"`
	Trades   []domain.Trade       `json:"trades"`
	Search   *optimize.Outcome    `json:"search,omitempty"`
}

// New creates an Engine. results may be nil.
func New(registry *strategy.Registry, source marketdata.Source, results store.ResultStore, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opt, err := optimize.New(optimize.Options{
		Backtest:    opts.Backtest,
		BarsPerYear: opts.BarsPerYear,
		Score:       opts.Score,
		Workers:     opts.Workers,
		TopN:        opts.TopN,
		OnProgress:  opts.OnProgress,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{
		registry: registry,
		source:   source,
		results:  results,
		opt:      opt,
		opts:     opts,
		log:      opts.Logger.With("component", "engine"),
	}, nil
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// Run backtests one parameter set: the strategy defaults with req.Params
// applied.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	f, err := e.registry.Lookup(req.Strategy)
	if err != nil {
		return nil, err
	}
	set, err := param.Resolve(f.ParameterSpace(), req.Params)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(set); err != nil {
		return nil, err
	}
	legs, err := e.loadLegs(ctx, f, req.Symbols, req.Range)
	if err != nil {
		return nil, err
	}

	res, err := e.opt.Evaluate(f, set, legs...)
	if err != nil {
		return nil, err
	}
	rep := e.report(ModeBacktest, f, res, req.Range, legs)
	e.log.Info("backtest finished",
		"strategy", f.Kind(),
		"symbols", strings.Join(rep.Symbols, ","),
		"params", set.String(),
		"totalReturn", res.Metrics.TotalReturn,
		"sharpe", res.Metrics.SharpeRatio,
	)
	e.persist(ctx, rep)
	return rep, nil
}

// Optimize searches the strategy's parameter grid on fixed symbols.
func (e *Engine) Optimize(ctx context.Context, req Request) (*Report, error) {
	f, err := e.registry.Lookup(req.Strategy)
	if err != nil {
		return nil, err
	}
	grid, err := searchGrid(f, req.Params, req.Ranges, true)
	if err != nil {
		return nil, err
	}
	legs, err := e.loadLegs(ctx, f, req.Symbols, req.Range)
	if err != nil {
		return nil, err
	}

	out, err := e.opt.Optimize(ctx, f, grid, legs...)
	if err != nil {
		return e.partial(ModeOptimize, f, out, req.Range), err
	}
	rep := e.report(ModeOptimize, f, out.Best, req.Range, legs)
	rep.Search = out
	e.persist(ctx, rep)
	return rep, nil
}

// OptimizePairs loads the universe, screens every pair and searches the
// accepted pairs.
func (e *Engine) OptimizePairs(ctx context.Context, req PairsRequest) (*Report, error) {
	f, err := e.registry.Lookup(req.Strategy)
	if err != nil {
		return nil, err
	}
	if f.Legs() != 2 {
		return nil, fmt.Errorf("%s is not a pairs strategy: %w", f.Kind(), domain.ErrInvalidParameter)
	}
	grid, err := searchGrid(f, req.Params, req.Ranges, req.Optimize)
	if err != nil {
		return nil, err
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	symbols, err := e.universe(ctx, req.Universe)
	if err != nil {
		return nil, err
	}
	symbols = marketdata.Universe(symbols, req.TopN)
	universe, err := marketdata.LoadUniverse(ctx, e.source, symbols, req.Range, e.opts.DataWorkers, e.log)
	if err != nil {
		return nil, err
	}

	out, err := e.opt.OptimizePairs(ctx, f, grid, universe, req.Filter)
	if err != nil {
		return e.partial(ModePairs, f, out, req.Range), err
	}
	rep := e.report(ModePairs, f, out.Best, req.Range, nil)
	rep.Search = out
	e.persist(ctx, rep)
	return rep, nil
}

// History returns the most recent persisted results.
func (e *Engine) History(ctx context.Context, limit int) ([]domain.StrategyRecord, error) {
	if e.results == nil {
		return nil, nil
	}
	return e.results.ListResults(ctx, limit)
}

// Result returns one persisted result by ID, or domain.ErrNotFound.
func (e *Engine) Result(ctx context.Context, id string) (*domain.StrategyRecord, error) {
	if e.results == nil {
		return nil, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	return e.results.GetResult(ctx, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// searchGrid builds the grid for f: ranges override the declared domains and
// params pin single values. Without search every parameter is pinned to its
// configured or default value.
func searchGrid(f strategy.Factory, params param.Set, ranges map[string]param.Range, search bool) (*param.Grid, error) {
	specs, err := param.Override(f.ParameterSpace(), ranges)
	if err != nil {
		return nil, err
	}
	if search {
		specs, err = param.Pin(specs, params)
		if err != nil {
			return nil, err
		}
	} else {
		set, err := param.Resolve(specs, params)
		if err != nil {
			return nil, err
		}
		specs = param.Fixed(specs, set)
	}
	return param.NewGrid(specs, f.Validate)
}

// universe returns symbols, or every symbol the source can list when symbols
// is empty.
func (e *Engine) universe(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) > 0 {
		return symbols, nil
	}
	l, ok := e.source.(marketdata.SymbolLister)
	if !ok {
		return nil, fmt.Errorf("empty pairs universe: %w", domain.ErrInvalidParameter)
	}
	listed, err := l.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	e.log.Info("using every stored symbol as the pairs universe", "symbols", len(listed))
	return listed, nil
}

func (e *Engine) loadLegs(ctx context.Context, f strategy.Factory, symbols []string, r marketdata.DateRange) ([]*domain.PriceSeries, error) {
	if len(symbols) != f.Legs() {
		return nil, fmt.Errorf("%s needs %d symbols, got %d: %w", f.Kind(), f.Legs(), len(symbols), domain.ErrInvalidParameter)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	legs := make([]*domain.PriceSeries, len(symbols))
	for i, sym := range symbols {
		s, err := e.source.Series(ctx, sym, r)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", sym, err)
		}
		legs[i] = s
	}
	if len(legs) == 2 {
		a, b, err := domain.AlignPair(legs[0], legs[1])
		if err != nil {
			return nil, err
		}
		legs[0], legs[1] = a, b
	}
	return legs, nil
}

func (e *Engine) report(mode string, f strategy.Factory, r *optimize.Result, dr marketdata.DateRange, legs []*domain.PriceSeries) *Report {
	rep := &Report{
		Mode:     mode,
		Strategy: f.Kind(),
		Range:    dr,
		Params:   r.Params,
		Pair:     r.Pair,
		Score:    r.Score,
		Metrics:  r.Metrics,
		Curve:    r.Curve,
		Trades:   r.Trades,
	}
	if r.Pair != nil {
		rep.Symbols = []string{r.Pair.A, r.Pair.B}
	} else {
		for _, l := range legs {
			rep.Symbols = append(rep.Symbols, l.Symbol())
		}
	}
	return rep
}

// partial wraps an incomplete search so callers can still show what was
// evaluated before a failure or cancellation.
func (e *Engine) partial(mode string, f strategy.Factory, out *optimize.Outcome, dr marketdata.DateRange) *Report {
	if out == nil {
		return nil
	}
	return &Report{Mode: mode, Strategy: f.Kind(), Range: dr, Search: out}
}

func (e *Engine) persist(ctx context.Context, rep *Report) {
	if e.results == nil {
		return
	}
	rec := &domain.StrategyRecord{
		CreatedAt:        time.Now().UTC(),
		Name:             rep.Strategy,
		Mode:             rep.Mode,
		Symbols:          rep.Symbols,
		Parameters:       rep.Params.JSON(),
		TotalReturn:      rep.Metrics.TotalReturn,
		AnnualizedReturn: rep.Metrics.AnnualizedReturn,
		SharpeRatio:      rep.Metrics.SharpeRatio,
		MaxDrawdown:      rep.Metrics.MaxDrawdown,
	}
	if err := e.results.SaveResult(ctx, rec); err != nil {
		e.log.Error("saving result failed", "strategy", rep.Strategy, "err", err)
		return
	}
	rep.ID = rec.ID
}
