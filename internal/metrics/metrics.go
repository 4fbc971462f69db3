// Package metrics computes performance statistics from equity curves and
// trade logs.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"stratopt/internal/domain"
	"stratopt/internal/util"
)

// Compute derives return, risk and monthly statistics from curve.
// barsPerYear scales per-bar figures to annual ones.
func Compute(curve domain.EquityCurve, barsPerYear float64) (domain.Metrics, error) {
	if len(curve) <= 1 {
		return domain.Metrics{}, fmt.Errorf("equity curve of %d points: %w", len(curve), domain.ErrInsufficientData)
	}
	if !(barsPerYear > 0) || math.IsInf(barsPerYear, 0) {
		return domain.Metrics{}, fmt.Errorf("bars per year %v: %w", barsPerYear, domain.ErrInvalidParameter)
	}
	initial, final := curve.Initial(), curve.Final()
	if !(initial > 0) {
		return domain.Metrics{}, fmt.Errorf("initial equity %v: %w", initial, domain.ErrInvalidParameter)
	}

	returns := Returns(curve)
	m := domain.Metrics{
		Bars:        len(curve),
		BarsPerYear: barsPerYear,
		TotalReturn: final/initial - 1,
		MaxDrawdown: MaxDrawdown(curve),
		Monthly:     Monthly(curve),
	}

	years := float64(len(curve)-1) / barsPerYear
	if final <= 0 {
		m.AnnualizedReturn = -1
	} else {
		m.AnnualizedReturn = math.Pow(final/initial, 1/years) - 1
	}

	if len(returns) >= 2 {
		mean, std := stat.MeanStdDev(returns, nil)
		if std > 0 {
			m.SharpeRatio = mean / std * math.Sqrt(barsPerYear)
			m.Volatility = std * math.Sqrt(barsPerYear)
		}
	}
	if m.MaxDrawdown < 0 {
		m.CalmarRatio = m.AnnualizedReturn / -m.MaxDrawdown
	}

	m.TotalReturn = finite(m.TotalReturn)
	m.AnnualizedReturn = finite(m.AnnualizedReturn)
	m.SharpeRatio = finite(m.SharpeRatio)
	m.Volatility = finite(m.Volatility)
	m.CalmarRatio = finite(m.CalmarRatio)
	return m, nil
}

// Summarize computes curve metrics and folds in the trade statistics.
func Summarize(curve domain.EquityCurve, trades []domain.Trade, barsPerYear float64) (domain.Metrics, error) {
	m, err := Compute(curve, barsPerYear)
	if err != nil {
		return m, err
	}
	ts := TradeStats(trades)
	m.TotalTrades, m.WinRate, m.ProfitFactor = ts.Total, ts.WinRate, ts.ProfitFactor
	return m, nil
}

// Returns gives the simple per-bar returns of curve. A bar following
// non-positive equity contributes 0.
func Returns(curve domain.EquityCurve) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			out[i-1] = curve[i].Equity/prev - 1
		}
	}
	return out
}

// MaxDrawdown returns the largest peak-to-trough decline as a non-positive
// fraction.
func MaxDrawdown(curve domain.EquityCurve) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := p.Equity/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Monthly compounds returns per calendar month (UTC). Each month is measured
// from the last equity of the previous month, the first from the initial
// equity.
func Monthly(curve domain.EquityCurve) []domain.MonthlyReturn {
	if len(curve) == 0 {
		return nil
	}
	var out []domain.MonthlyReturn
	base := curve[0].Equity
	for i := 0; i < len(curve); {
		y, mo, _ := curve[i].Time.UTC().Date()
		j := i
		for j+1 < len(curve) && sameMonth(curve[j+1].Time, y, mo) {
			j++
		}
		end := curve[j].Equity
		r := 0.0
		if base > 0 {
			r = end/base - 1
		}
		out = append(out, domain.MonthlyReturn{Year: y, Month: mo, Return: finite(r)})
		base = end
		i = j + 1
	}
	return out
}

func sameMonth(t time.Time, y int, m time.Month) bool {
	ty, tm, _ := t.UTC().Date()
	return ty == y && tm == m
}

// ---------------------------------------------------------------------------
// Trade statistics
// ---------------------------------------------------------------------------

// Stats summarises closed round trips.
type Stats struct {
	Total        int
	Wins         int
	GrossProfit  float64
	GrossLoss    float64
	WinRate      float64
	ProfitFactor float64
}

// TradeStats aggregates closed trades by round trip, so both legs of a pairs
// position count once. ProfitFactor is 0 when there are no losing round
// trips.
func TradeStats(trades []domain.Trade) Stats {
	pnl := make(map[int]float64)
	var order []int
	for _, tr := range trades {
		if tr.Open {
			continue
		}
		if _, ok := pnl[tr.RoundTrip]; !ok {
			order = append(order, tr.RoundTrip)
		}
		pnl[tr.RoundTrip] += tr.PnL
	}

	var s Stats
	for _, id := range order {
		p := pnl[id]
		s.Total++
		switch {
		case p > 0:
			s.Wins++
			s.GrossProfit += p
		case p < 0:
			s.GrossLoss -= p
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}

// ---------------------------------------------------------------------------
// Annualisation
// ---------------------------------------------------------------------------

// InferBarsPerYear estimates the bar frequency of times from the median
// spacing between consecutive timestamps, using the US equity calendar.
func InferBarsPerYear(times []time.Time) float64 {
	cal := util.NewTradingCalendar(util.MarketUS)
	if len(times) < 2 {
		return cal.BarsPerYear(24 * time.Hour)
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, float64(times[i].Sub(times[i-1])))
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		median = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}
	return cal.BarsPerYear(time.Duration(median))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
