package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"stratopt/internal/config"
	"stratopt/internal/domain"
	"stratopt/internal/engine"
	"stratopt/internal/marketdata"
	"stratopt/internal/optimize"
	"stratopt/internal/param"
	"stratopt/internal/report"
	"stratopt/internal/strategy/builtins"
	"stratopt/internal/util"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stratopt <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run        Backtest one parameter set\n")
	fmt.Fprintf(os.Stderr, "  optimize   Search the parameter grid on fixed symbols\n")
	fmt.Fprintf(os.Stderr, "  pairs      Screen a universe and search every accepted pair\n")
	fmt.Fprintf(os.Stderr, "  history    List saved results, or show one with -id\n")
	fmt.Fprintf(os.Stderr, "  strategies List registered strategies and their parameters\n")
	fmt.Fprintf(os.Stderr, "  version    Print the version\n")
	fmt.Fprintf(os.Stderr, "\nRun 'stratopt <command> -h' for command options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "version":
		fmt.Printf("stratopt %s\n", version)
		return
	case "strategies":
		listStrategies()
		return
	case "run", "optimize", "pairs", "history":
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", config.Path(), "configuration file")
	format := fs.String("format", "text", "output format: text or json")
	var o overrides
	o.register(fs, cmd)
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, os.ErrNotExist) && *cfgPath == config.DefaultPath {
		cfg, err = config.Load("")
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	presenter, err := report.New(*format)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	if cmd == "history" {
		if err := history(ctx, app.engine, presenter, os.Stdout, &o); err != nil {
			log.Fatalf("history: %v", err)
		}
		return
	}

	rep, err := execute(ctx, app.engine, cmd, cfg, &o)
	if rep != nil {
		if perr := presenter.Present(os.Stdout, rep); perr != nil {
			log.Fatalf("writing report: %v", perr)
		}
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
	if o.tradesCSV != "" {
		if err := report.SaveTradesCSV(o.tradesCSV, rep.Trades); err != nil {
			log.Fatalf("writing trades: %v", err)
		}
		slog.Info("trades written", "path", o.tradesCSV, "trades", len(rep.Trades))
	}
}

func execute(ctx context.Context, e *engine.Engine, cmd string, cfg *config.Config, o *overrides) (*engine.Report, error) {
	r, err := marketdata.ParseDateRange(cfg.Data.Start, cfg.Data.End)
	if err != nil {
		return nil, err
	}
	params, err := o.params(cfg.Strategy.Params)
	if err != nil {
		return nil, err
	}

	switch cmd {
	case "run":
		return e.Run(ctx, engine.Request{
			Strategy: cfg.Strategy.Type,
			Symbols:  cfg.Strategy.Symbols,
			Range:    r,
			Params:   params,
		})
	case "optimize":
		return e.Optimize(ctx, engine.Request{
			Strategy: cfg.Strategy.Type,
			Symbols:  cfg.Strategy.Symbols,
			Range:    r,
			Params:   params,
			Ranges:   cfg.Strategy.Ranges,
		})
	default:
		return e.OptimizePairs(ctx, engine.PairsRequest{
			Strategy: cfg.Strategy.Type,
			Universe: cfg.Pairs.Universe,
			TopN:     cfg.Pairs.TopN,
			Range:    r,
			Filter:   pairFilter(cfg.Pairs),
			Params:   params,
			Ranges:   cfg.Strategy.Ranges,
			Optimize: cfg.Pairs.Optimize,
		})
	}
}

// history lists recent results, or the single result named by -id.
func history(ctx context.Context, e *engine.Engine, p report.Presenter, w io.Writer, o *overrides) error {
	var recs []domain.StrategyRecord
	if o.id != "" {
		rec, err := e.Result(ctx, o.id)
		if err != nil {
			return err
		}
		recs = []domain.StrategyRecord{*rec}
	} else {
		var err error
		if recs, err = e.History(ctx, o.limit); err != nil {
			return err
		}
	}
	return p.History(w, recs)
}

func pairFilter(p config.Pairs) optimize.PairFilter {
	switch p.Filter {
	case "cointegration":
		return optimize.CointegrationFilter{Critical: p.ADFCritical}
	case "none":
		return optimize.AcceptAll{}
	default:
		return optimize.CorrelationFilter{Min: p.MinCorrelation}
	}
}

func listStrategies() {
	reg := builtins.NewRegistry()
	for _, kind := range reg.List() {
		f, _ := reg.Get(kind)
		fmt.Printf("%s (%d leg)\n", kind, f.Legs())
		for _, s := range f.ParameterSpace() {
			dom, err := s.Domain()
			if err != nil {
				fmt.Printf("  %-12s %-6s default %v\n", s.Name, s.Kind, s.Default)
				continue
			}
			fmt.Printf("  %-12s %-6s default %v, %d values\n", s.Name, s.Kind, s.Default, len(dom))
		}
	}
}

// ---------------------------------------------------------------------------
// Command-line overrides
// ---------------------------------------------------------------------------

// overrides holds flags that take precedence over the configuration file.
type overrides struct {
	strategy  string
	symbols   string
	universe  string
	start     string
	end       string
	score     string
	workers   int
	optimize  bool
	assign    []string
	tradesCSV string
	limit     int
	id        string
}

func (o *overrides) register(fs *flag.FlagSet, cmd string) {
	if cmd == "history" {
		fs.IntVar(&o.limit, "limit", 20, "number of results to list, 0 for all")
		fs.StringVar(&o.id, "id", "", "show only the result with this ID")
		return
	}
	fs.StringVar(&o.strategy, "strategy", "", "strategy kind (see 'stratopt strategies')")
	fs.StringVar(&o.start, "start", "", "first day, YYYY-MM-DD")
	fs.StringVar(&o.end, "end", "", "last day, YYYY-MM-DD (default today)")
	fs.StringVar(&o.score, "score", "", "score to maximise: "+strings.Join(optimize.ScoreNames(), ", "))
	fs.IntVar(&o.workers, "workers", 0, "optimizer goroutines")
	fs.StringVar(&o.tradesCSV, "trades-csv", "", "write the trade log of the reported result to this file")
	fs.Func("p", "parameter assignment name=value, repeatable", func(v string) error {
		o.assign = append(o.assign, v)
		return nil
	})
	if cmd == "pairs" {
		fs.StringVar(&o.universe, "universe", "", "comma-separated universe")
		fs.BoolVar(&o.optimize, "optimize", false, "search parameters for every accepted pair")
	} else {
		fs.StringVar(&o.symbols, "symbols", "", "comma-separated symbols, one per leg")
	}
}

func (o *overrides) apply(cfg *config.Config) {
	if o.strategy != "" {
		cfg.Strategy.Type = o.strategy
	}
	if o.symbols != "" {
		cfg.Strategy.Symbols = splitList(o.symbols)
	}
	if o.universe != "" {
		cfg.Pairs.Universe = splitList(o.universe)
	}
	if o.start != "" {
		cfg.Data.Start = o.start
	}
	if o.end != "" {
		cfg.Data.End = o.end
	}
	if o.score != "" {
		cfg.Backtest.Score = o.score
	}
	if o.workers > 0 {
		cfg.Backtest.Workers = o.workers
	}
	if o.optimize {
		cfg.Pairs.Optimize = true
	}
}

// params merges -p assignments over the configured parameters.
func (o *overrides) params(base map[string]any) (param.Set, error) {
	set := make(param.Set, len(base)+len(o.assign))
	for k, v := range base {
		set[k] = v
	}
	cli, err := param.Parse(o.assign)
	if err != nil {
		return nil, err
	}
	for k, v := range cli {
		set[k] = v
	}
	return set, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
