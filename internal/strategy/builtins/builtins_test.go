package builtins

import (
	"errors"
	"math"
	"testing"
	"time"

	"stratopt/internal/domain"
	"stratopt/internal/param"
	"stratopt/internal/strategy"
)

func closeSeries(t *testing.T, symbol string, closes []float64) *domain.PriceSeries {
	t.Helper()
	times := make([]time.Time, len(closes))
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = start.AddDate(0, 0, i)
	}
	s, err := domain.SeriesFromCloses(symbol, times, closes)
	if err != nil {
		t.Fatalf("SeriesFromCloses: %v", err)
	}
	return s
}

func assertTargets(t *testing.T, got *domain.SignalSeries, want []float64) {
	t.Helper()
	if got.Len() != len(want) {
		t.Fatalf("got %d targets, want %d", got.Len(), len(want))
	}
	for i, w := range want {
		if got.Targets[i] != w {
			t.Errorf("target[%d] = %v, want %v (all: %v)", i, got.Targets[i], w, got.Targets)
		}
	}
}

func TestSignalsMatchInputTimestamps(t *testing.T) {
	n := 60
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = 100 + 10*math.Sin(float64(i)/5)
		b[i] = 50 + 5*math.Sin(float64(i)/5) + float64(i%3)
	}
	sa, sb := closeSeries(t, "A", a), closeSeries(t, "B", b)

	r := NewRegistry()
	for _, kind := range r.List() {
		f, _ := r.Get(kind)
		set := param.Defaults(f.ParameterSpace())
		s, err := f.New(set)
		if err != nil {
			t.Fatalf("%s: New(%v): %v", kind, set, err)
		}
		legs := []*domain.PriceSeries{sa}
		if f.Legs() == 2 {
			legs = append(legs, sb)
		}
		sig, err := s.GenerateSignals(legs...)
		if err != nil {
			t.Fatalf("%s: GenerateSignals: %v", kind, err)
		}
		if sig.Len() != n || len(sig.Times) != n {
			t.Fatalf("%s: signal length %d, want %d", kind, sig.Len(), n)
		}
		for i, ts := range sig.Times {
			if !ts.Equal(sa.Bar(i).Timestamp) {
				t.Fatalf("%s: signal time %d = %v, want %v", kind, i, ts, sa.Bar(i).Timestamp)
			}
		}
	}
}

func TestBuyAndHold(t *testing.T) {
	s := closeSeries(t, "X", []float64{1, 2, 3})
	sig, err := BuyAndHold{}.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{1, 1, 1})
}

func TestMeanReversionSpike(t *testing.T) {
	s := closeSeries(t, "X", []float64{10, 10, 10, 10, 10, 20, 10, 10, 10})
	mr, err := NewMeanReversion(MeanReversionConfig{Window: 3, K: 1})
	if err != nil {
		t.Fatalf("NewMeanReversion: %v", err)
	}
	sig, err := mr.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{0, 0, 0, 0, 0, -1, 0, 0, 0})
}

func TestMeanReversionDip(t *testing.T) {
	s := closeSeries(t, "X", []float64{10, 10, 10, 4, 10})
	mr, _ := NewMeanReversion(MeanReversionConfig{Window: 3, K: 1})
	sig, err := mr.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{0, 0, 0, 1, 0})
}

func TestMeanReversionGapRepeatsPrevious(t *testing.T) {
	s := closeSeries(t, "X", []float64{10, 10, 10, 20, math.NaN(), 10})
	mr, _ := NewMeanReversion(MeanReversionConfig{Window: 3, K: 1})
	sig, err := mr.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if sig.Targets[3] != -1 || sig.Targets[4] != -1 {
		t.Errorf("targets around gap = %v, want -1 at bars 3 and 4", sig.Targets)
	}
}

func TestMeanReversionInsufficientData(t *testing.T) {
	mr, _ := NewMeanReversion(MeanReversionConfig{Window: 10, K: 2})
	_, err := mr.GenerateSignals(closeSeries(t, "X", []float64{1, 2, 3}))
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("GenerateSignals error = %v, want ErrInsufficientData", err)
	}
}

func TestMeanReversionConfigValidate(t *testing.T) {
	if _, err := NewMeanReversion(MeanReversionConfig{Window: 1, K: 2}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("window 1 error = %v, want ErrInvalidParameter", err)
	}
	if _, err := NewMeanReversion(MeanReversionConfig{Window: 5, K: 0}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("k 0 error = %v, want ErrInvalidParameter", err)
	}
}

func TestSMACrossSignals(t *testing.T) {
	s := closeSeries(t, "X", []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11})

	long, err := NewSMACross(CrossoverConfig{Fast: 2, Slow: 4})
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	sig, err := long.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1})

	both, _ := NewSMACross(CrossoverConfig{Fast: 2, Slow: 4, AllowShort: true})
	sig, err = both.GenerateSignals(s)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{0, 0, 0, -1, -1, -1, 1, 1, 1, 1})
}

func TestSMACrossRejectsFastNotBelowSlow(t *testing.T) {
	f := SMACrossFactory{}
	for _, set := range []param.Set{
		{"fast": 50, "slow": 20},
		{"fast": 20, "slow": 20},
	} {
		if err := f.Validate(set); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidParameter", set, err)
		}
		if _, err := f.New(set); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("New(%v) error = %v, want ErrInvalidParameter", set, err)
		}
	}
}

func TestSMACrossDefaultGrid(t *testing.T) {
	f := SMACrossFactory{}
	g, err := param.NewGrid(f.ParameterSpace(), f.Validate)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.Size() != 100 {
		t.Errorf("Size() = %d, want 100", g.Size())
	}
	arena, err := g.Arena()
	if err != nil {
		t.Fatalf("Arena: %v", err)
	}
	if len(arena) != 90 {
		t.Errorf("valid sets = %d, want 90", len(arena))
	}
}

func TestPairsDifference(t *testing.T) {
	spread := []float64{0, 1, 0, 1, 0, 1, 0, 1, 10, 0}
	a := make([]float64, len(spread))
	b := make([]float64, len(spread))
	for i, s := range spread {
		b[i] = 100 + float64(i)
		a[i] = b[i] + s
	}
	p, err := NewPairs(PairsConfig{Window: 4, Entry: 1, Exit: 0.2, Hedge: HedgeDifference})
	if err != nil {
		t.Fatalf("NewPairs: %v", err)
	}
	sig, err := p.GenerateSignals(closeSeries(t, "A", a), closeSeries(t, "B", b))
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	assertTargets(t, sig, []float64{0, 0, 0, 0, 0, 0, 0, 0, -1, -1})
	if sig.Hedge[8] != 1 {
		t.Errorf("Hedge[8] = %v, want 1", sig.Hedge[8])
	}
}

func TestPairsOLSHedge(t *testing.T) {
	n := 30
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		b[i] = 50 + float64(i)
		e := 0.5
		if i%2 == 1 {
			e = -0.5
		}
		a[i] = 2*b[i] + e
	}
	p, _ := NewPairs(PairsConfig{Window: 6, Entry: 2, Exit: 0.5, Hedge: HedgeOLS})
	sig, err := p.GenerateSignals(closeSeries(t, "A", a), closeSeries(t, "B", b))
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if h := sig.Hedge[n-1]; math.Abs(h-2) > 0.15 {
		t.Errorf("Hedge[last] = %v, want ~2", h)
	}
}

func TestPairsLogRatioHedge(t *testing.T) {
	a := []float64{10, 11, 12, 13, 14, 15}
	b := []float64{5, 5, 5, 5, 5, 5}
	p, _ := NewPairs(PairsConfig{Window: 3, Entry: 2, Exit: 0.5, Hedge: HedgeLogRatio})
	sig, err := p.GenerateSignals(closeSeries(t, "A", a), closeSeries(t, "B", b))
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if sig.Hedge[5] != 3 {
		t.Errorf("Hedge[5] = %v, want 3", sig.Hedge[5])
	}
}

func TestPairsMisaligned(t *testing.T) {
	a := closeSeries(t, "A", []float64{1, 2, 3, 4, 5})
	bars := a.Bars()
	for i := range bars {
		bars[i].Timestamp = bars[i].Timestamp.Add(time.Hour)
	}
	b, _ := domain.NewPriceSeries("B", bars)

	p, _ := NewPairs(PairsConfig{Window: 2, Entry: 2, Exit: 0.5, Hedge: HedgeDifference})
	if _, err := p.GenerateSignals(a, b); !errors.Is(err, domain.ErrMisalignedData) {
		t.Errorf("GenerateSignals error = %v, want ErrMisalignedData", err)
	}
}

func TestPairsConfigValidate(t *testing.T) {
	bad := []PairsConfig{
		{Window: 1, Entry: 2, Exit: 0.5, Hedge: HedgeOLS},
		{Window: 10, Entry: 0.5, Exit: 0.5, Hedge: HedgeOLS},
		{Window: 10, Entry: 2, Exit: -1, Hedge: HedgeOLS},
		{Window: 10, Entry: 2, Exit: 0.5, Hedge: "kalman"},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidParameter", cfg, err)
		}
	}
}

func TestRegistryHasBuiltins(t *testing.T) {
	r := NewRegistry()
	want := []string{KindBuyAndHold, KindMeanReversion, KindPairs, KindSMACross}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	var _ strategy.Factory = PairsFactory{}
}
