package optimize

import (
	"fmt"
	"math"
	"sort"

	"stratopt/internal/domain"
)

// Scorer maps metrics to a figure of merit; higher is better.
type Scorer func(domain.Metrics) float64

// Scoring functions selectable by name.
var scorers = map[string]Scorer{
	"sharpe":            func(m domain.Metrics) float64 { return m.SharpeRatio },
	"total_return":      func(m domain.Metrics) float64 { return m.TotalReturn },
	"annualized_return": func(m domain.Metrics) float64 { return m.AnnualizedReturn },
	"calmar":            func(m domain.Metrics) float64 { return m.CalmarRatio },
	"max_drawdown":      func(m domain.Metrics) float64 { return m.MaxDrawdown },
}

// DefaultScore is the scorer used when none is configured.
const DefaultScore = "sharpe"

// ScorerByName looks up a scoring function. An empty name selects the
// default.
func ScorerByName(name string) (Scorer, error) {
	if name == "" {
		name = DefaultScore
	}
	s, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("unknown score %q (known: %v): %w", name, ScoreNames(), domain.ErrInvalidParameter)
	}
	return s, nil
}

// ScoreNames returns the registered scorer names in sorted order.
func ScoreNames() []string {
	names := make([]string, 0, len(scorers))
	for k := range scorers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// better reports whether a ranks strictly ahead of b: higher score, then
// higher total return, then lower index. NaN scores rank last.
func better(a, b *Result) bool {
	if b == nil {
		return a != nil
	}
	if a == nil {
		return false
	}
	sa, sb := key(a.Score), key(b.Score)
	if sa != sb {
		return sa > sb
	}
	if a.Metrics.TotalReturn != b.Metrics.TotalReturn {
		return a.Metrics.TotalReturn > b.Metrics.TotalReturn
	}
	return a.Index < b.Index
}

func key(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}
