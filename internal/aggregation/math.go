package aggregation

import (
	"math"
	"sort"
)

// energyMeanDB converts a slice of dB values to linear energies, averages
// them, and converts back to dB: LAeq := 10*log10(mean(10^(x/10))), per
// spec §4.5/§4.7. Returns math.NaN() if values is empty.
func energyMeanDB(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += math.Pow(10, v/10)
	}
	mean := sum / float64(len(values))
	return 10 * math.Log10(mean)
}

// maxValue returns the largest of values and its index, or ok=false if
// values is empty.
func maxValue(values []float64) (v float64, idx int, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	best := values[0]
	bestIdx := 0
	for i, x := range values[1:] {
		if x > best {
			best = x
			bestIdx = i + 1
		}
	}
	return best, bestIdx, true
}

// percentile computes the p-th percentile (0-100) of values using linear
// interpolation between ranks, per spec §4.8. values is not mutated.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// finiteOnly drops NaN/Inf values, mirroring the original's "drop
// non-finite values" step before aggregation.
func finiteOnly(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
