package builtins

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"stratopt/internal/domain"
)

// validMask reports which closes are tradable.
func validMask(closes []float64) []bool {
	out := make([]bool, len(closes))
	for i, c := range closes {
		out[i] = domain.ValidPrice(c)
	}
	return out
}

// fillForward replaces invalid closes with the last valid one. Leading
// invalid values stay NaN.
func fillForward(closes []float64) []float64 {
	out := make([]float64, len(closes))
	last := math.NaN()
	for i, c := range closes {
		if domain.ValidPrice(c) {
			last = c
		}
		out[i] = last
	}
	return out
}

// window returns xs[t-n+1 : t+1], or nil when the window is incomplete or
// contains NaN.
func window(xs []float64, t, n int) []float64 {
	if t < n-1 {
		return nil
	}
	w := xs[t-n+1 : t+1]
	for _, v := range w {
		if math.IsNaN(v) {
			return nil
		}
	}
	return w
}

// sma returns the simple moving average over n bars, NaN until defined.
func sma(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	for t := range xs {
		w := window(xs, t, n)
		if w == nil {
			out[t] = math.NaN()
			continue
		}
		out[t] = stat.Mean(w, nil)
	}
	return out
}

// zscore is (x - mean) / std, or 0 when std is zero.
func zscore(x, mean, std float64) float64 {
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (x - mean) / std
}
