// Package domain defines the core value types shared across the engine:
// bars, price series, signals, trades, equity curves and metrics.
package domain

import (
	"fmt"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Bars and price series
// ---------------------------------------------------------------------------

// Bar is a single OHLCV observation.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// ValidPrice reports whether p can be traded on: finite and strictly positive.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// PriceSeries is an immutable, strictly time-ordered sequence of bars for one
// instrument. It is safe to share between goroutines.
type PriceSeries struct {
	symbol string
	bars   []Bar
}

// NewPriceSeries validates bars and returns a PriceSeries owning a copy of
// them. Timestamps must be strictly increasing.
func NewPriceSeries(symbol string, bars []Bar) (*PriceSeries, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("series %s: no bars: %w", symbol, ErrInsufficientData)
	}
	cp := make([]Bar, len(bars))
	for i, b := range bars {
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("series %s: bar %d at %s does not follow %s: %w",
				symbol, i, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339), ErrMisalignedData)
		}
		b.Symbol = symbol
		cp[i] = b
	}
	return &PriceSeries{symbol: symbol, bars: cp}, nil
}

// SeriesFromCloses builds a close-only series. Bars open at the prior close
// as described by FillOpens.
func SeriesFromCloses(symbol string, times []time.Time, closes []float64) (*PriceSeries, error) {
	if len(times) != len(closes) {
		return nil, fmt.Errorf("series %s: %d timestamps for %d closes: %w",
			symbol, len(times), len(closes), ErrMisalignedData)
	}
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Timestamp: times[i], Open: math.NaN(), High: math.NaN(), Low: math.NaN(), Close: c}
	}
	FillOpens(bars)
	return NewPriceSeries(symbol, bars)
}

// FillOpens gives close-only bars an open in place. A bar with a valid close
// opens at the last valid close before it, or at its own close when there is
// none; a bar without one stays a gap. Missing High and Low span Open and
// Close.
func FillOpens(bars []Bar) {
	prev := math.NaN()
	for i := range bars {
		b := &bars[i]
		if !ValidPrice(b.Close) {
			b.Open = math.NaN()
			continue
		}
		b.Open = b.Close
		if ValidPrice(prev) {
			b.Open = prev
		}
		if math.IsNaN(b.High) {
			b.High = math.Max(b.Open, b.Close)
		}
		if math.IsNaN(b.Low) {
			b.Low = math.Min(b.Open, b.Close)
		}
		prev = b.Close
	}
}

// Symbol returns the instrument identifier.
func (s *PriceSeries) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.bars) }

// Bar returns the i-th bar.
func (s *PriceSeries) Bar(i int) Bar { return s.bars[i] }

// Start returns the timestamp of the first bar.
func (s *PriceSeries) Start() time.Time { return s.bars[0].Timestamp }

// End returns the timestamp of the last bar.
func (s *PriceSeries) End() time.Time { return s.bars[len(s.bars)-1].Timestamp }

// Bars returns a copy of the underlying bars.
func (s *PriceSeries) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Times returns the bar timestamps.
func (s *PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Timestamp
	}
	return out
}

// Closes returns the close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// SameTimes reports whether s and other have identical timestamps.
func (s *PriceSeries) SameTimes(other *PriceSeries) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.bars {
		if !s.bars[i].Timestamp.Equal(other.bars[i].Timestamp) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Pairs
// ---------------------------------------------------------------------------

// Pair names two instruments traded as a spread, A long / B short for a
// positive spread position.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// String returns "A/B".
func (p Pair) String() string { return p.A + "/" + p.B }

// AlignPair restricts a and b to their common timestamps. At least two
// common bars are required.
func AlignPair(a, b *PriceSeries) (*PriceSeries, *PriceSeries, error) {
	if a.SameTimes(b) {
		return a, b, nil
	}
	var outA, outB []Bar
	i, j := 0, 0
	for i < len(a.bars) && j < len(b.bars) {
		ta, tb := a.bars[i].Timestamp, b.bars[j].Timestamp
		switch {
		case ta.Equal(tb):
			outA = append(outA, a.bars[i])
			outB = append(outB, b.bars[j])
			i++
			j++
		case ta.Before(tb):
			i++
		default:
			j++
		}
	}
	if len(outA) < 2 {
		return nil, nil, fmt.Errorf("aligning %s/%s: %d common bars: %w",
			a.symbol, b.symbol, len(outA), ErrInsufficientData)
	}
	sa, err := NewPriceSeries(a.symbol, outA)
	if err != nil {
		return nil, nil, err
	}
	sb, err := NewPriceSeries(b.symbol, outB)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// SignalSeries holds one target position per input bar. Targets are weights
// in [-1, 1]: +1 fully long, -1 fully short, 0 flat. For two-leg strategies
// the target applies to the spread and Hedge carries the units of leg B per
// unit of leg A.
type SignalSeries struct {
	Times   []time.Time
	Targets []float64
	Hedge   []float64
}

// NewSignalSeries returns an all-flat SignalSeries aligned with times.
func NewSignalSeries(times []time.Time) *SignalSeries {
	t := make([]time.Time, len(times))
	copy(t, times)
	return &SignalSeries{
		Times:   t,
		Targets: make([]float64, len(times)),
	}
}

// Len returns the number of targets.
func (s *SignalSeries) Len() int { return len(s.Targets) }

// ---------------------------------------------------------------------------
// Trades and equity
// ---------------------------------------------------------------------------

// Direction is the side of a position.
type Direction int

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = 1
)

// String returns "long", "short" or "flat".
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Trade is one leg of a round trip opened and closed by the backtester.
// Trades sharing a RoundTrip number were opened together (the two legs of a
// pairs position).
type Trade struct {
	RoundTrip  int       `json:"round_trip"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Fees       float64   `json:"fees"`
	PnL        float64   `json:"pnl"`
	Open       bool      `json:"open,omitempty"`
}

// EquityPoint is the marked-to-market account value at one bar close.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// EquityCurve is the account value over time, starting at the initial
// capital.
type EquityCurve []EquityPoint

// Initial returns the first equity value, or 0 for an empty curve.
func (c EquityCurve) Initial() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].Equity
}

// Final returns the last equity value, or 0 for an empty curve.
func (c EquityCurve) Final() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Equity
}

// Values returns the equity values without timestamps.
func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Equity
	}
	return out
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// MonthlyReturn is the compounded return over one calendar month.
type MonthlyReturn struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Return float64    `json:"return"`
}

// Metrics summarises an equity curve and its trade log. All values are
// finite.
type Metrics struct {
	TotalReturn      float64         `json:"total_return"`
	AnnualizedReturn float64         `json:"annualized_return"`
	SharpeRatio      float64         `json:"sharpe_ratio"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	Volatility       float64         `json:"volatility"`
	CalmarRatio      float64         `json:"calmar_ratio"`
	Bars             int             `json:"bars"`
	BarsPerYear      float64         `json:"bars_per_year"`
	TotalTrades      int             `json:"total_trades"`
	WinRate          float64         `json:"win_rate"`
	ProfitFactor     float64         `json:"profit_factor"`
	Monthly          []MonthlyReturn `json:"monthly,omitempty"`
}

// StrategyRecord is a persisted backtest or optimization result.
type StrategyRecord struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Name             string    `json:"name"`
	Mode             string    `json:"mode"`
	Symbols          []string  `json:"symbols"`
	Parameters       string    `json:"parameters"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
}
