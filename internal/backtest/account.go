package backtest

import (
	"math"

	"stratopt/internal/domain"
)

// account tracks cash, per-leg units and the open trade of each leg during a
// single simulation.
type account struct {
	cfg       Config
	legs      []*domain.PriceSeries
	cash      float64
	units     []float64
	lastClose []float64
	open      []domain.Trade
	target    float64
	roundTrip int
	fees      float64
	trades    []domain.Trade
}

func newAccount(cfg Config, legs []*domain.PriceSeries) *account {
	a := &account{
		cfg:       cfg,
		legs:      legs,
		cash:      cfg.InitialCapital,
		units:     make([]float64, len(legs)),
		lastClose: make([]float64, len(legs)),
		open:      make([]domain.Trade, len(legs)),
	}
	for i := range a.lastClose {
		a.lastClose[i] = math.NaN()
	}
	return a
}

// canTrade reports whether every leg has a usable open and close at bar t.
func (a *account) canTrade(t int) bool {
	for _, l := range a.legs {
		b := l.Bar(t)
		if !domain.ValidPrice(b.Open) || !domain.ValidPrice(b.Close) {
			return false
		}
	}
	return true
}

// rebalance moves the account to target at the open of bar t. Any existing
// position is closed first.
func (a *account) rebalance(t int, target, hedge float64) {
	if a.target != 0 {
		a.closePosition(t)
	}
	if target == 0 {
		return
	}
	a.openPosition(t, target, hedge)
}

func (a *account) closePosition(t int) {
	for i, l := range a.legs {
		u := a.units[i]
		if u == 0 {
			continue
		}
		bar := l.Bar(t)
		fee := math.Abs(u) * bar.Open * a.cfg.FeeRate
		a.cash += u*bar.Open - fee
		a.fees += fee

		tr := a.open[i]
		tr.ExitTime = bar.Timestamp
		tr.ExitPrice = bar.Open
		tr.Fees += fee
		tr.PnL = u*(bar.Open-tr.EntryPrice) - tr.Fees
		a.trades = append(a.trades, tr)

		a.units[i] = 0
		a.open[i] = domain.Trade{}
	}
	a.target = 0
}

func (a *account) openPosition(t int, target, hedge float64) {
	equity := a.cash
	if equity <= 0 {
		return
	}
	if math.IsNaN(hedge) || math.IsInf(hedge, 0) {
		hedge = 1
	}

	// Size so that notional plus entry fees equals |target| of equity.
	direction := math.Copysign(1, target)
	per := a.legs[0].Bar(t).Open
	if len(a.legs) == 2 {
		per += math.Abs(hedge) * a.legs[1].Bar(t).Open
	}
	qty := equity * math.Abs(target) / (per * (1 + a.cfg.FeeRate))

	a.units[0] = direction * qty
	if len(a.legs) == 2 {
		a.units[1] = -hedge * a.units[0]
	}

	a.roundTrip++
	for i, l := range a.legs {
		u := a.units[i]
		if u == 0 {
			continue
		}
		bar := l.Bar(t)
		fee := math.Abs(u) * bar.Open * a.cfg.FeeRate
		a.cash -= u*bar.Open + fee
		a.fees += fee
		a.open[i] = domain.Trade{
			RoundTrip:  a.roundTrip,
			Symbol:     l.Symbol(),
			Direction:  sideOf(u),
			EntryTime:  bar.Timestamp,
			EntryPrice: bar.Open,
			Size:       math.Abs(u),
			Fees:       fee,
		}
	}
	a.target = target
}

// mark records the latest valid close of every leg.
func (a *account) mark(t int) {
	for i, l := range a.legs {
		if c := l.Bar(t).Close; domain.ValidPrice(c) {
			a.lastClose[i] = c
		}
	}
}

func (a *account) equity() float64 {
	eq := a.cash
	for i, u := range a.units {
		if u != 0 {
			eq += u * a.lastClose[i]
		}
	}
	return eq
}

// finish returns the trade log, marking still-open legs at the last close.
func (a *account) finish(last int) []domain.Trade {
	trades := a.trades
	for i, l := range a.legs {
		u := a.units[i]
		if u == 0 {
			continue
		}
		tr := a.open[i]
		tr.ExitTime = l.Bar(last).Timestamp
		tr.ExitPrice = a.lastClose[i]
		tr.PnL = u*(tr.ExitPrice-tr.EntryPrice) - tr.Fees
		tr.Open = true
		trades = append(trades, tr)
	}
	return trades
}

func sideOf(units float64) domain.Direction {
	switch {
	case units > 0:
		return domain.Long
	case units < 0:
		return domain.Short
	default:
		return domain.Flat
	}
}
