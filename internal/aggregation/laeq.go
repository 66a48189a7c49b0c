package aggregation

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/schedule"
)

// ldenGrace is the delay the 24h callback waits after writing LAeq24h
// before computing Lday/Levening/Lnight/Lden, giving the finer-interval
// aggregators time to settle. Grounded on original_source's literal 20s
// sleep inside the Lden writer.
const ldenGrace = 20 * time.Second

// LAeqAggregator implements spec component C7: hierarchical LAeq
// rollups plus the Lday/Levening/Lnight/Lden regulatory indicators.
type LAeqAggregator struct {
	store localstore.Store
	log   *slog.Logger
}

// NewLAeqAggregator returns an Aggregator bound to store.
func NewLAeqAggregator(store localstore.Store, log *slog.Logger) *LAeqAggregator {
	if log == nil {
		log = slog.Default()
	}
	return &LAeqAggregator{store: store, log: log.With("aggregator", "LAeq")}
}

func (a *LAeqAggregator) Name() string { return "LAeq" }

// Intervals subscribes LAeq to every scheduler boundary, per spec §4.7.
func (a *LAeqAggregator) Intervals() []schedule.Interval {
	return []schedule.Interval{
		schedule.Interval1Min, schedule.Interval5Min, schedule.Interval15Min,
		schedule.Interval30Min, schedule.Interval1Hour, schedule.Interval24Hr,
	}
}

var laeqTableByInterval = map[schedule.Interval]string{
	schedule.Interval1Min:  "LAeq1min",
	schedule.Interval5Min:  "LAeq5min",
	schedule.Interval15Min: "LAeq15min",
	schedule.Interval30Min: "LAeq30min",
	schedule.Interval1Hour: "LAeq1h",
	schedule.Interval24Hr:  "LAeq24h",
}

func (a *LAeqAggregator) sourceTable(interval schedule.Interval) string {
	if interval == schedule.Interval1Min {
		return "LAeq"
	}
	return "LAeq1min"
}

func (a *LAeqAggregator) OnInterval(ctx context.Context, interval schedule.Interval, start, end time.Time) {
	out, ok := laeqTableByInterval[interval]
	if !ok {
		return
	}

	src := a.sourceTable(interval)
	if interval == schedule.Interval24Hr {
		src = "LAeq1h"
	}

	values, err := a.store.FetchValues(src, start, end)
	if err != nil {
		a.log.Error("fetch failed", "source", src, "error", err)
		return
	}
	level := energyMeanDB(finiteOnly(values))
	if err := a.writeLevel(out, end, level); err != nil {
		a.log.Error("write failed", "table", out, "error", err)
		return
	}

	if interval == schedule.Interval24Hr {
		select {
		case <-time.After(ldenGrace):
		case <-ctx.Done():
			return
		}
		a.computeLden(start)
	}
}

func (a *LAeqAggregator) writeLevel(table string, ts time.Time, level float64) error {
	if err := a.store.EnsureTable(table); err != nil {
		return err
	}
	return a.store.Insert(table, ts, roundTo2(level))
}

// windowLevel returns energyMeanDB over [start,end) of table, or
// (0, false) if the window has no finite rows or the fetch fails.
func (a *LAeqAggregator) windowLevel(table string, start, end time.Time) (float64, bool) {
	values, err := a.store.FetchValues(table, start, end)
	if err != nil {
		a.log.Error("fetch failed", "source", table, "error", err)
		return 0, false
	}
	values = finiteOnly(values)
	if len(values) == 0 {
		return 0, false
	}
	return energyMeanDB(values), true
}

// computeLden computes Lday/Levening/Lnight/Lden for the calendar day
// starting at day (the 24h boundary's start), per spec §4.7.
func (a *LAeqAggregator) computeLden(day time.Time) {
	ldayEU, ldayEUOK := a.windowLevel("LAeq1h", day.Add(7*time.Hour), day.Add(19*time.Hour))

	ldayRO, ldayROTs, ldayROOK := a.maxSlidingWindow("LAeq1h", day.Add(7*time.Hour), 6*time.Hour, 30*time.Minute, 13)

	leveningEU, leveningOK := a.windowLevel("LAeq15min", day.Add(19*time.Hour), day.Add(22*time.Hour+45*time.Minute+time.Second))
	leveningRO, leveningROTs, leveningROOK := a.maxInWindow("LAeq15min", day.Add(19*time.Hour), day.Add(22*time.Hour+45*time.Minute+time.Second))

	nightStart := day.Add(-1 * time.Hour * 24).Add(23 * time.Hour)
	nightEnd := day.Add(6*time.Hour + 30*time.Minute + time.Second)
	lnightEU, lnightOK := a.windowLevel("LAeq30min", nightStart, nightEnd)
	lnightRO, lnightROTs, lnightROOK := a.maxInWindow("LAeq30min", nightStart, nightEnd)

	if !ldayEUOK || !ldayROOK || !leveningOK || !leveningROOK || !lnightOK || !lnightROOK {
		a.log.Warn("Lden skipped: missing component",
			"day_eu", ldayEUOK, "day_ro", ldayROOK,
			"evening_eu", leveningOK, "evening_ro", leveningROOK,
			"night_eu", lnightOK, "night_ro", lnightROOK)
		return
	}

	ldenEU := ldenComposite(ldayEU, leveningEU, lnightEU)
	ldenRO := ldenComposite(ldayRO, leveningRO, lnightRO)

	row := &localstore.LdenRow{
		Timestamp:        day,
		LdayEU:           roundTo2(ldayEU),
		LdayRO:           roundTo2(ldayRO),
		TimestampLdayRO:  ldayROTs,
		LeveningEU:       roundTo2(leveningEU),
		LeveningRO:       roundTo2(leveningRO),
		TimestampLevRO:   leveningROTs,
		LnightEU:         roundTo2(lnightEU),
		LnightRO:         roundTo2(lnightRO),
		TimestampNightRO: lnightROTs,
		LdenEU:           roundTo2(ldenEU),
		LdenRO:           roundTo2(ldenRO),
	}

	if err := a.store.EnsureLdenTable(); err != nil {
		a.log.Error("ensure Lden table failed", "error", err)
		return
	}
	if err := a.store.InsertLden(row); err != nil {
		a.log.Error("insert Lden failed", "error", err)
	}
}

// ldenComposite implements spec §4.7's composite formula:
// Lden := 10*log10(12/24*10^(Lday/10) + 4/24*10^((Levening+5)/10) + 8/24*10^((Lnight+10)/10)).
func ldenComposite(lday, levening, lnight float64) float64 {
	day := 12.0 / 24.0 * math.Pow(10, lday/10)
	evening := 4.0 / 24.0 * math.Pow(10, (levening+5)/10)
	night := 8.0 / 24.0 * math.Pow(10, (lnight+10)/10)
	return 10 * math.Log10(day+evening+night)
}

// maxInWindow returns the single largest value in [start,end) of table
// and its timestamp.
func (a *LAeqAggregator) maxInWindow(table string, start, end time.Time) (float64, time.Time, bool) {
	rows, err := a.store.FetchValuesWithTs(table, start, end)
	if err != nil {
		a.log.Error("fetch failed", "source", table, "error", err)
		return 0, time.Time{}, false
	}
	if len(rows) == 0 {
		return 0, time.Time{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Value > best.Value {
			best = r
		}
	}
	return best.Value, best.Timestamp, true
}

// maxSlidingWindow evaluates windowLevel over `count` windows of the
// given length, starting at firstStart and stepping by step, returning
// the maximum level and the start timestamp that achieved it.
func (a *LAeqAggregator) maxSlidingWindow(table string, firstStart time.Time, length, step time.Duration, count int) (float64, time.Time, bool) {
	var (
		best    float64
		bestTs  time.Time
		haveAny bool
	)
	for k := 0; k < count; k++ {
		ws := firstStart.Add(time.Duration(k) * step)
		we := ws.Add(length)
		level, ok := a.windowLevel(table, ws, we)
		if !ok {
			continue
		}
		if !haveAny || level > best {
			best = level
			bestTs = ws
			haveAny = true
		}
	}
	return best, bestTs, haveAny
}
