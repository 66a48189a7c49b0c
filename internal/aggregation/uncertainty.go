package aggregation

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/schedule"
)

// uncertaintyGrace is the delay the 24h callback waits before reading the
// Lden row, ensuring LAeqAggregator's own 20s grace has already produced
// it. Grounded on original_source's literal 25s startup sleep inside the
// uncertainty callback.
const uncertaintyGrace = 25 * time.Second

// UncertaintyAggregator implements spec component C9: the ISO 1996-2
// Annex G expanded combined uncertainty of Lday, Levening, Lnight and
// Lden.
type UncertaintyAggregator struct {
	store localstore.Store
	log   *slog.Logger
}

// NewUncertaintyAggregator returns an Aggregator bound to store.
func NewUncertaintyAggregator(store localstore.Store, log *slog.Logger) *UncertaintyAggregator {
	if log == nil {
		log = slog.Default()
	}
	return &UncertaintyAggregator{store: store, log: log.With("aggregator", "Uncertainty")}
}

func (a *UncertaintyAggregator) Name() string { return "Uncertainty" }

// Intervals subscribes Uncertainty to 24h only, per spec §4.9.
func (a *UncertaintyAggregator) Intervals() []schedule.Interval {
	return []schedule.Interval{schedule.Interval24Hr}
}

func (a *UncertaintyAggregator) OnInterval(ctx context.Context, interval schedule.Interval, start, end time.Time) {
	if interval != schedule.Interval24Hr {
		return
	}

	select {
	case <-time.After(uncertaintyGrace):
	case <-ctx.Done():
		return
	}

	day := start
	ldayEU, leveningEU, lnightEU, ok, err := a.store.LdenComponents(day)
	if err != nil {
		a.log.Error("reading Lden row failed", "error", err)
		return
	}
	if !ok {
		a.log.Warn("uncertainty skipped: no Lden row for boundary", "day", day)
		return
	}

	dayRef, uDay, ok := a.category("LAeq1h", day.Add(7*time.Hour), 3*time.Hour, ldayEU)
	if !ok {
		a.log.Warn("uncertainty skipped: day groups incomplete")
		return
	}
	eveningRef, uEvening, ok := a.category("LAeq15min", day.Add(19*time.Hour), time.Hour, leveningEU)
	if !ok {
		a.log.Warn("uncertainty skipped: evening groups incomplete")
		return
	}
	nightStart := day.Add(-24 * time.Hour).Add(23 * time.Hour)
	nightRef, uNight, ok := a.category("LAeq30min", nightStart, 2*time.Hour, lnightEU)
	if !ok {
		a.log.Warn("uncertainty skipped: night groups incomplete")
		return
	}

	A := 12 * math.Pow(10, dayRef/10)
	B := 4 * math.Pow(10, (eveningRef+5)/10)
	C := 8 * math.Pow(10, (nightRef+10)/10)

	uLden := math.Sqrt(A*A*uDay*uDay+B*B*uEvening*uEvening+C*C*uNight*uNight) / (A + B + C)

	if err := a.store.EnsureULdenTable(); err != nil {
		a.log.Error("ensure U_Lden table failed", "error", err)
		return
	}
	if err := a.store.InsertULden(day, roundTo2(uLden)); err != nil {
		a.log.Error("insert U_Lden failed", "error", err)
	}
}

// category computes the reference level and expanded uncertainty U(L)
// for one of day/evening/night, per spec §4.9's 4-group procedure. euLevel
// is the already-computed EU indicator (e.g. lday_eu) used only to form
// L_ref.
func (a *UncertaintyAggregator) category(sourceTable string, firstGroupStart time.Time, groupLength time.Duration, euLevel float64) (lRef, uL float64, ok bool) {
	var (
		uLk    [4]float64
		lk     [4]float64
		wk     [4]float64
		haveAll = true
	)

	for k := 0; k < 4; k++ {
		gs := firstGroupStart.Add(time.Duration(k) * groupLength)
		ge := gs.Add(groupLength)

		xs, err := a.store.FetchValues(sourceTable, gs, ge)
		if err != nil {
			a.log.Error("fetch failed", "source", sourceTable, "error", err)
			haveAll = false
			break
		}
		xs = finiteOnly(xs)
		n := len(xs)
		if n < 2 {
			haveAll = false
			break
		}

		backgrounds, err := a.store.FetchValues("LAF", gs, ge)
		if err != nil {
			a.log.Error("fetch failed", "source", "LAF", "error", err)
			haveAll = false
			break
		}
		backgrounds = finiteOnly(backgrounds)
		if len(backgrounds) == 0 {
			haveAll = false
			break
		}

		var sumE float64
		for _, x := range xs {
			sumE += math.Pow(10, x/10)
		}
		eBar := sumE / float64(n)

		// Step 1: the literal source formula uses 1*log10(e_bar), not the
		// expected 10*log10(e_bar) (see spec Open Questions). Preserved
		// as-written rather than corrected.
		lPrime := 1 * math.Log10(eBar)

		var sumSq float64
		for _, e := range xs {
			energy := math.Pow(10, e/10)
			d := energy - eBar
			sumSq += d * d
		}
		sK := math.Sqrt(sumSq / float64(n-1))
		uK := 10*math.Log10(eBar+sK) - lPrime

		lRes := percentile(backgrounds, 90)
		lK := 10 * math.Log10(eBar-math.Pow(10, lRes/10))

		uPrime := uK / math.Sqrt(float64(n))
		uRes := 4 / math.Sqrt(float64(n))

		cLPrime := 1 / (1 - math.Pow(10, -(lPrime-lRes)/10))
		cLRes := cLPrime * math.Pow(10, -(lPrime-lRes)/10)

		uLk[k] = math.Sqrt(cLPrime*cLPrime*uPrime*uPrime + cLRes*cLRes*uRes*uRes)
		lk[k] = lK
		wk[k] = math.Pow(10, lK/10) * 0.25
	}

	if !haveAll {
		return 0, 0, false
	}

	var sumW float64
	for _, w := range wk {
		sumW += w
	}
	if sumW == 0 {
		return 0, 0, false
	}

	const uPi = 0.05
	var clK, cpK [4]float64
	for k := 0; k < 4; k++ {
		clK[k] = wk[k] / sumW
		lkEnergy := math.Pow(10, lk[k]/10)
		cpK[k] = 10 * math.Log10(2.7) * lkEnergy / sumW
	}
	uWeight := combinedWeightedUncertainty(uLk, clK, cpK, uPi)

	lRef = euLevel + 1.0
	uL = math.Sqrt(uWeight*uWeight + 0.2*0.2)
	return lRef, uL, true
}

// combinedWeightedUncertainty is step 3 of
// incertitude_calculator.py's compute_final_uncertainty_interval:
//
//	u_weight = sqrt(Σ(ulk_k² · cl_k²) + Σ(cp_k² · upi²))
//
// a sum-of-squares across all 4 groups, not a square of the two group
// totals (squaring a sum of 4 equally-weighted terms inflates the
// result by up to 2x, and its square by up to 4x, relative to this
// correct elementwise form).
func combinedWeightedUncertainty(uLk, clK, cpK [4]float64, uPi float64) float64 {
	var sumSq float64
	for k := 0; k < 4; k++ {
		sumSq += (uLk[k] * clK[k]) * (uLk[k] * clK[k])
		sumSq += (cpK[k] * uPi) * (cpK[k] * uPi)
	}
	return math.Sqrt(sumSq)
}
