package aggregation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/schedule"
)

func TestUncertaintyAggregatorSkipsWithoutLdenRow(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureLdenTable())
	require.NoError(t, store.EnsureULdenTable())

	agg := NewUncertaintyAggregator(store, nil)
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	go func() {
		agg.OnInterval(context.Background(), schedule.Interval24Hr, day, day.Add(24*time.Hour))
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("OnInterval did not return before test timeout")
	}

	var count int64
	require.NoError(t, store.DB().Table("U_Lden").Count(&count).Error)
	require.EqualValues(t, 0, count)
}

// TestCombinedWeightedUncertaintyMatchesPythonReference exercises the
// sum-of-squares formula from compute_final_uncertainty_interval
// directly against incertitude_calculator.py's reference shape: 4
// equally-weighted groups (ulk=1, cl=0.25) with no residual-noise
// contribution (cp=0) give u_weight = sqrt(4 * (1*0.25)^2) = 0.5, not
// sqrt((4*1*0.25)^2) = 1.0 (the square-of-sum value the unfixed code
// produced).
func TestCombinedWeightedUncertaintyMatchesPythonReference(t *testing.T) {
	uLk := [4]float64{1, 1, 1, 1}
	clK := [4]float64{0.25, 0.25, 0.25, 0.25}
	cpK := [4]float64{0, 0, 0, 0}

	got := combinedWeightedUncertainty(uLk, clK, cpK, 0.05)
	require.InDelta(t, 0.5, got, 1e-9)

	// The previously-shipped square-of-sum formula would have given 1.0
	// here; confirm the fix is not numerically equivalent to it.
	var sumU, sumCp float64
	for k := 0; k < 4; k++ {
		sumU += uLk[k] * clK[k]
		sumCp += cpK[k] * 0.05
	}
	buggy := sumU*sumU + sumCp*sumCp
	require.NotInDelta(t, buggy, got*got, 1e-9)
}

// TestCombinedWeightedUncertaintyUnequalGroups covers groups with
// distinct weights and a nonzero cp term, matching the general case of
// incertitude_calculator.py's compute_final_uncertainty_interval.
func TestCombinedWeightedUncertaintyUnequalGroups(t *testing.T) {
	uLk := [4]float64{2.0, 1.0, 0.5, 1.5}
	clK := [4]float64{0.4, 0.3, 0.2, 0.1}
	cpK := [4]float64{1.0, 2.0, 0.5, 0.5}
	const uPi = 0.05

	want := 0.0
	for k := 0; k < 4; k++ {
		want += (uLk[k] * clK[k]) * (uLk[k] * clK[k])
		want += (cpK[k] * uPi) * (cpK[k] * uPi)
	}
	want = math.Sqrt(want)

	got := combinedWeightedUncertainty(uLk, clK, cpK, uPi)
	require.InDelta(t, want, got, 1e-9)
}
