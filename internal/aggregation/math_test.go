package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnergyMeanDBFlat(t *testing.T) {
	values := []float64{70, 70, 70, 70, 70, 70, 70, 70}
	assert.InDelta(t, 70.00, energyMeanDB(values), 0.01)
}

func TestEnergyMeanDBAsymmetric(t *testing.T) {
	// 10*log10((10^6 + 10^8)/2) ~= 77.04
	assert.InDelta(t, 77.04, energyMeanDB([]float64{60, 80}), 0.01)
}

func TestLdenComposite(t *testing.T) {
	// Both evening+5 and night+10 equal 60, so Lden == 60.00.
	got := ldenComposite(60, 55, 50)
	assert.InDelta(t, 60.00, got, 0.01)
}

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	assert.InDelta(t, 10, percentile(values, 0), 1e-9)
	assert.InDelta(t, 40, percentile(values, 100), 1e-9)
	assert.InDelta(t, 25, percentile(values, 50), 1e-9)
}

func TestFiniteOnlyDropsNaNAndInf(t *testing.T) {
	values := []float64{1, 2}
	values = append(values, nan(), inf())
	got := finiteOnly(values)
	assert.Equal(t, []float64{1, 2}, got)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func inf() float64 {
	var zero float64
	return 1 / zero
}
