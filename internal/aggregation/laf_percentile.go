package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/schedule"
)

// LAFPercentileAggregator implements spec component C8: L5/L10/L50/L90/L95
// statistical levels computed over the base LAF table.
type LAFPercentileAggregator struct {
	store localstore.Store
	log   *slog.Logger
}

// NewLAFPercentileAggregator returns an Aggregator bound to store.
func NewLAFPercentileAggregator(store localstore.Store, log *slog.Logger) *LAFPercentileAggregator {
	if log == nil {
		log = slog.Default()
	}
	return &LAFPercentileAggregator{store: store, log: log.With("aggregator", "LAF")}
}

func (a *LAFPercentileAggregator) Name() string { return "LAF" }

// Intervals subscribes LAF to 1m and 24h, per spec §4.8.
func (a *LAFPercentileAggregator) Intervals() []schedule.Interval {
	return []schedule.Interval{schedule.Interval1Min, schedule.Interval24Hr}
}

var lafTableByInterval = map[schedule.Interval]string{
	schedule.Interval1Min: "LAF_percentiles_1min",
	schedule.Interval24Hr: "LAF_percentiles_24h",
}

func (a *LAFPercentileAggregator) OnInterval(ctx context.Context, interval schedule.Interval, start, end time.Time) {
	table, ok := lafTableByInterval[interval]
	if !ok {
		return
	}

	values, err := a.store.FetchValues("LAF", start, end)
	if err != nil {
		a.log.Error("fetch failed", "source", "LAF", "error", err)
		return
	}
	values = finiteOnly(values)
	if len(values) == 0 {
		a.log.Warn("no finite LAF samples in window", "interval", interval)
		return
	}

	l5 := roundTo2(percentile(values, 95))
	l10 := roundTo2(percentile(values, 90))
	l50 := roundTo2(percentile(values, 50))
	l90 := roundTo2(percentile(values, 10))
	l95 := roundTo2(percentile(values, 5))

	if err := a.store.EnsurePercentileTable(table); err != nil {
		a.log.Error("ensure table failed", "table", table, "error", err)
		return
	}
	if err := a.store.InsertPercentiles(table, end, l5, l10, l50, l90, l95); err != nil {
		a.log.Error("insert failed", "table", table, "error", err)
	}
}
