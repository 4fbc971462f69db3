package util

import (
	"time"
)

// Market identifies an exchange calendar.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// TradingCalendar provides session-length and trading-day awareness for a
// specific market. Exchange holidays are not modelled.
type TradingCalendar struct {
	market Market
}

// NewTradingCalendar creates a TradingCalendar for the given market.
func NewTradingCalendar(market Market) *TradingCalendar {
	return &TradingCalendar{
		market: market,
	}
}

// TradingDaysPerYear returns the conventional number of sessions per year.
func (tc *TradingCalendar) TradingDaysPerYear() float64 {
	if tc.market == MarketCN {
		return 244
	}
	return 252
}

// SessionLength returns the length of a regular trading session: NYSE
// 9:30-16:00, SSE 9:30-11:30 plus 13:00-15:00.
func (tc *TradingCalendar) SessionLength() time.Duration {
	if tc.market == MarketCN {
		return 4 * time.Hour
	}
	return 6*time.Hour + 30*time.Minute
}

// IsTradingDay reports whether t falls on a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// SessionsBetween counts the trading days from the date of from up to, but
// not including, the date of to.
func (tc *TradingCalendar) SessionsBetween(from, to time.Time) int {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	n := 0
	for ; d.Before(end); d = d.AddDate(0, 0, 1) {
		if tc.IsTradingDay(d) {
			n++
		}
	}
	return n
}

// BarsPerYear maps a typical bar spacing to the number of bars in a year:
// monthly 12, weekly 52, daily the session count, and intraday bars scaled
// by the session length.
func (tc *TradingCalendar) BarsPerYear(interval time.Duration) float64 {
	days := tc.TradingDaysPerYear()
	switch {
	case interval >= 25*24*time.Hour:
		return 12
	case interval >= 5*24*time.Hour:
		return 52
	case interval >= 20*time.Hour, interval <= 0:
		return days
	case interval >= tc.SessionLength():
		return days
	default:
		return days * float64(tc.SessionLength()) / float64(interval)
	}
}
