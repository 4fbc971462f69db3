// Package optimize searches strategy parameter space, and for pairs
// strategies instrument-pair space, for the configuration that maximises a
// score computed from backtest metrics.
//
// Candidates are addressed by index into a materialised arena and split into
// contiguous chunks, one per worker. Each worker keeps its own best and the
// final reduction is sequential, so the chosen candidate does not depend on
// the worker count.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"stratopt/internal/backtest"
	"stratopt/internal/domain"
	"stratopt/internal/metrics"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

// Options configures an Optimizer.
type Options struct {
	Backtest    backtest.Config
	BarsPerYear float64 // 0 infers from the first leg's timestamps
	Score       string  // scorer name, default "sharpe"
	Workers     int     // 0 uses GOMAXPROCS
	TopN        int     // length of Outcome.Ranked, 0 keeps all
	KeepCurves  bool    // retain curves and trades on every ranked result

	// OnProgress, when set, is called after each evaluation with the number
	// of candidates finished and the total. It may be called concurrently.
	OnProgress func(done, total int)

	Logger *slog.Logger
}

// Result is one scored candidate.
type Result struct {
	Index   int                `json:"index"`
	Params  param.Set          `json:"params"`
	Pair    *domain.Pair       `json:"pair,omitempty"`
	Metrics domain.Metrics     `json:"metrics"`
	Score   float64            `json:"score"`
	Curve   domain.EquityCurve `json:"-"`
	Trades  []domain.Trade     `json:"-"`
}

// Rejection records a pair excluded by the pre-filter.
type Rejection struct {
	Pair      domain.Pair `json:"pair"`
	Statistic float64     `json:"statistic"`
	Reason    string      `json:"reason"`
}

// Outcome is the result of a search. Best is nil when no candidate could be
// scored.
type Outcome struct {
	Best      *Result     `json:"best"`
	Ranked    []Result    `json:"ranked"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	Total     int         `json:"total"`
	Evaluated int         `json:"evaluated"`
	Skipped   int         `json:"skipped"`
}

// Optimizer runs backtests over a candidate arena in parallel.
type Optimizer struct {
	opts   Options
	bt     *backtest.Backtester
	score  Scorer
	logger *slog.Logger
}

// New validates opts and returns an Optimizer.
func New(opts Options) (*Optimizer, error) {
	bt, err := backtest.New(opts.Backtest)
	if err != nil {
		return nil, err
	}
	score, err := ScorerByName(opts.Score)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.BarsPerYear < 0 {
		return nil, fmt.Errorf("bars per year %v: %w", opts.BarsPerYear, domain.ErrInvalidParameter)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		opts:   opts,
		bt:     bt,
		score:  score,
		logger: logger.With("component", "optimizer"),
	}, nil
}

// Evaluate backtests one parameter set against legs and scores it.
func (o *Optimizer) Evaluate(f strategy.Factory, set param.Set, legs ...*domain.PriceSeries) (*Result, error) {
	if err := strategy.CheckLegs(f.Legs(), 2, legs); err != nil {
		return nil, err
	}
	return o.evaluate(f, set, o.barsPerYear(legs[0]), legs)
}

func (o *Optimizer) evaluate(f strategy.Factory, set param.Set, barsPerYear float64, legs []*domain.PriceSeries) (*Result, error) {
	s, err := f.New(set)
	if err != nil {
		return nil, err
	}
	sig, err := s.GenerateSignals(legs...)
	if err != nil {
		return nil, err
	}
	res, err := o.bt.RunLegs(legs, sig)
	if err != nil {
		return nil, err
	}
	m, err := metrics.Summarize(res.Curve, res.Trades, barsPerYear)
	if err != nil {
		return nil, err
	}
	return &Result{
		Params:  set,
		Metrics: m,
		Score:   o.score(m),
		Curve:   res.Curve,
		Trades:  res.Trades,
	}, nil
}

// Optimize searches grid for the best parameter set on fixed legs.
func (o *Optimizer) Optimize(ctx context.Context, f strategy.Factory, grid *param.Grid, legs ...*domain.PriceSeries) (*Outcome, error) {
	if err := strategy.CheckLegs(f.Legs(), 2, legs); err != nil {
		return nil, err
	}
	arena, err := grid.Arena()
	if err != nil {
		return &Outcome{}, err
	}

	bpy := o.barsPerYear(legs[0])
	var pair *domain.Pair
	if len(legs) == 2 {
		pair = &domain.Pair{A: legs[0].Symbol(), B: legs[1].Symbol()}
	}

	o.logger.Info("optimization starting",
		"strategy", f.Kind(),
		"candidates", len(arena),
		"gridSize", grid.Size(),
		"workers", o.opts.Workers,
	)
	out, err := o.search(ctx, len(arena), func(i int) (*Result, error) {
		r, err := o.evaluate(f, arena[i], bpy, legs)
		if err != nil {
			return nil, err
		}
		r.Pair = pair
		return r, nil
	})
	return o.finish(f, out, err)
}

// search evaluates candidates [0, total) across workers.
func (o *Optimizer) search(ctx context.Context, total int, eval func(i int) (*Result, error)) (*Outcome, error) {
	out := &Outcome{Total: total}
	if total == 0 {
		return out, nil
	}
	workers := min(o.opts.Workers, total)
	chunk := (total + workers - 1) / workers

	slots := make([]*Result, total)
	bests := make([]*Result, workers)
	skipped := make([]int, workers)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, total)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := eval(i)
				if err != nil {
					if !skippable(err) {
						return fmt.Errorf("candidate %d: %w", i, err)
					}
					skipped[w]++
					o.logger.Debug("candidate skipped", "index", i, "error", err)
				} else {
					r.Index = i
					if better(r, bests[w]) {
						bests[w] = r
					}
					slots[i] = o.summary(r)
				}
				n := int(done.Add(1))
				if o.opts.OnProgress != nil {
					o.opts.OnProgress(n, total)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	for w := range bests {
		if better(bests[w], out.Best) {
			out.Best = bests[w]
		}
		out.Skipped += skipped[w]
	}
	for _, r := range slots {
		if r != nil {
			out.Ranked = append(out.Ranked, *r)
		}
	}
	out.Evaluated = len(out.Ranked)
	sort.SliceStable(out.Ranked, func(i, j int) bool {
		return better(&out.Ranked[i], &out.Ranked[j])
	})
	if o.opts.TopN > 0 && len(out.Ranked) > o.opts.TopN {
		out.Ranked = out.Ranked[:o.opts.TopN]
	}
	return out, err
}

func (o *Optimizer) finish(f strategy.Factory, out *Outcome, err error) (*Outcome, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("optimization interrupted", "strategy", f.Kind(), "evaluated", out.Evaluated)
		}
		return out, err
	}
	if out.Best == nil {
		return out, fmt.Errorf("%s: %d candidates, %d skipped: %w",
			f.Kind(), out.Total, out.Skipped, domain.ErrNoValidCandidate)
	}
	o.logger.Info("optimization finished",
		"strategy", f.Kind(),
		"evaluated", out.Evaluated,
		"skipped", out.Skipped,
		"rejectedPairs", len(out.Rejected),
		"bestParams", out.Best.Params.String(),
		"bestScore", out.Best.Score,
	)
	return out, nil
}

// summary strips the curve and trades unless KeepCurves is set.
func (o *Optimizer) summary(r *Result) *Result {
	if o.opts.KeepCurves {
		return r
	}
	cp := *r
	cp.Curve, cp.Trades = nil, nil
	return &cp
}

func (o *Optimizer) barsPerYear(s *domain.PriceSeries) float64 {
	if o.opts.BarsPerYear > 0 {
		return o.opts.BarsPerYear
	}
	return metrics.InferBarsPerYear(s.Times())
}

// skippable reports errors confined to a single candidate.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrInvalidParameter) || errors.Is(err, domain.ErrInsufficientData)
}
