package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(i)
	}
	return out
}

func TestNewPriceSeriesEmpty(t *testing.T) {
	_, err := NewPriceSeries("AAPL", nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("NewPriceSeries(nil) error = %v, want ErrInsufficientData", err)
	}
}

func TestNewPriceSeriesRejectsDuplicates(t *testing.T) {
	bars := []Bar{
		{Timestamp: day(0), Close: 1},
		{Timestamp: day(1), Close: 2},
		{Timestamp: day(1), Close: 3},
	}
	_, err := NewPriceSeries("AAPL", bars)
	if !errors.Is(err, ErrMisalignedData) {
		t.Errorf("NewPriceSeries(duplicate) error = %v, want ErrMisalignedData", err)
	}
}

func TestNewPriceSeriesCopiesInput(t *testing.T) {
	bars := []Bar{{Timestamp: day(0), Close: 1}, {Timestamp: day(1), Close: 2}}
	s, err := NewPriceSeries("msft", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	bars[0].Close = 99
	if s.Bar(0).Close != 1 {
		t.Errorf("series shares caller slice: Close = %v, want 1", s.Bar(0).Close)
	}
	if s.Bar(1).Symbol != "msft" {
		t.Errorf("Bar.Symbol = %q, want %q", s.Bar(1).Symbol, "msft")
	}

	got := s.Closes()
	got[0] = 42
	if s.Bar(0).Close != 1 {
		t.Error("Closes returned a view into the series")
	}
}

func TestSeriesFromCloses(t *testing.T) {
	closes := []float64{100, 102, 101}
	s, err := SeriesFromCloses("X", days(3), closes)
	if err != nil {
		t.Fatalf("SeriesFromCloses: %v", err)
	}
	wantOpen := []float64{100, 100, 102}
	for i, w := range wantOpen {
		if s.Bar(i).Open != w {
			t.Errorf("bar %d Open = %v, want %v", i, s.Bar(i).Open, w)
		}
	}
	if s.Bar(2).High != 102 || s.Bar(2).Low != 101 {
		t.Errorf("bar 2 High/Low = %v/%v, want 102/101", s.Bar(2).High, s.Bar(2).Low)
	}

	if _, err := SeriesFromCloses("X", days(2), closes); !errors.Is(err, ErrMisalignedData) {
		t.Errorf("length mismatch error = %v, want ErrMisalignedData", err)
	}
}

func TestFillOpensAcrossGap(t *testing.T) {
	nan := math.NaN()
	bars := []Bar{
		{Close: 10, High: nan, Low: nan},
		{Close: 11, High: nan, Low: nan},
		{Close: nan, High: nan, Low: nan},
		{Close: 12, High: nan, Low: nan},
		{Close: 13, High: 14, Low: nan},
	}
	FillOpens(bars)
	wantOpen := []float64{10, 10, nan, 11, 12}
	for i, w := range wantOpen {
		got := bars[i].Open
		if got != w && !(math.IsNaN(got) && math.IsNaN(w)) {
			t.Errorf("bar %d Open = %v, want %v", i, got, w)
		}
	}
	if bars[3].High != 12 || bars[3].Low != 11 {
		t.Errorf("bar 3 High/Low = %v/%v, want 12/11", bars[3].High, bars[3].Low)
	}
	if bars[4].High != 14 || bars[4].Low != 12 {
		t.Errorf("bar 4 High/Low = %v/%v, want 14/12", bars[4].High, bars[4].Low)
	}
}

func TestValidPrice(t *testing.T) {
	cases := map[float64]bool{
		1:           true,
		0:           false,
		-3:          false,
		math.NaN():  false,
		math.Inf(1): false,
	}
	for p, want := range cases {
		if got := ValidPrice(p); got != want {
			t.Errorf("ValidPrice(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestAlignPair(t *testing.T) {
	a, _ := SeriesFromCloses("A", []time.Time{day(0), day(1), day(2), day(4)}, []float64{1, 2, 3, 4})
	b, _ := SeriesFromCloses("B", []time.Time{day(1), day(2), day(3), day(4)}, []float64{5, 6, 7, 8})

	ga, gb, err := AlignPair(a, b)
	if err != nil {
		t.Fatalf("AlignPair: %v", err)
	}
	if ga.Len() != 3 || gb.Len() != 3 {
		t.Fatalf("aligned lengths = %d/%d, want 3/3", ga.Len(), gb.Len())
	}
	if !ga.SameTimes(gb) {
		t.Error("aligned series do not share timestamps")
	}
	if ga.Bar(0).Close != 2 || gb.Bar(2).Close != 8 {
		t.Errorf("aligned closes = %v/%v, want 2/8", ga.Bar(0).Close, gb.Bar(2).Close)
	}
}

func TestAlignPairNoOverlap(t *testing.T) {
	a, _ := SeriesFromCloses("A", []time.Time{day(0), day(1)}, []float64{1, 2})
	b, _ := SeriesFromCloses("B", []time.Time{day(5), day(6)}, []float64{1, 2})
	if _, _, err := AlignPair(a, b); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("AlignPair error = %v, want ErrInsufficientData", err)
	}
}

func TestEquityCurve(t *testing.T) {
	var empty EquityCurve
	if empty.Initial() != 0 || empty.Final() != 0 {
		t.Error("empty curve Initial/Final should be 0")
	}
	c := EquityCurve{{Time: day(0), Equity: 100}, {Time: day(1), Equity: 110}}
	if c.Initial() != 100 {
		t.Errorf("Initial() = %v, want 100", c.Initial())
	}
	if c.Final() != 110 {
		t.Errorf("Final() = %v, want 110", c.Final())
	}
}

func TestDirectionString(t *testing.T) {
	if Long.String() != "long" || Short.String() != "short" || Flat.String() != "flat" {
		t.Errorf("Direction strings = %q/%q/%q", Long, Short, Flat)
	}
	if (Pair{A: "KO", B: "PEP"}).String() != "KO/PEP" {
		t.Error("Pair.String() mismatch")
	}
}
