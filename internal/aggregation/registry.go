// Package aggregation implements the LAeqAggregator, LAFPercentileAggregator
// and UncertaintyAggregator (spec components C7/C8/C9), grounded on
// original_source/src/aggregation/acoustic_aggregator/*.py.
package aggregation

import (
	"log/slog"

	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/schedule"
)

// Aggregator is the common shape every registered aggregator implements;
// it is also a schedule.Subscriber.
type Aggregator interface {
	schedule.Subscriber
	Name() string
}

// Constructor builds an Aggregator bound to a store and logger.
type Constructor func(store localstore.Store, log *slog.Logger) Aggregator

// Registry is an explicit name -> Constructor map, replacing the
// original's importlib-based dynamic aggregator loading
// (aggregation_manager.py's _load_aggregators) with an explicit registry,
// per Design Notes §9.
var Registry = map[string]Constructor{
	"LAeq": func(store localstore.Store, log *slog.Logger) Aggregator {
		return NewLAeqAggregator(store, log)
	},
	"LAF": func(store localstore.Store, log *slog.Logger) Aggregator {
		return NewLAFPercentileAggregator(store, log)
	},
	"Uncertainty": func(store localstore.Store, log *slog.Logger) Aggregator {
		return NewUncertaintyAggregator(store, log)
	},
}

// intervalsOf exposes the fixed subscription set each registered
// aggregator wants, per spec §4.7/§4.8/§4.9.
type intervalsOf interface {
	Intervals() []schedule.Interval
}

// Build instantiates the aggregators applicable to the configured
// acoustic sequence parameters and registers each with scheduler for its
// declared intervals. LAeq enables both the hierarchical LAeq rollups and
// the derived UncertaintyAggregator (which reads the Lden row LAeq
// produces); LAF enables the percentile aggregator.
func Build(acousticSequences []string, store localstore.Store, log *slog.Logger, scheduler *schedule.Scheduler) []Aggregator {
	wanted := map[string]bool{}
	for _, name := range acousticSequences {
		wanted[name] = true
	}

	var names []string
	if wanted["LAeq"] {
		names = append(names, "LAeq", "Uncertainty")
	}
	if wanted["LAF"] {
		names = append(names, "LAF")
	}

	var built []Aggregator
	for _, name := range names {
		ctor, ok := Registry[name]
		if !ok {
			continue
		}
		agg := ctor(store, log)
		built = append(built, agg)
		for _, interval := range agg.(intervalsOf).Intervals() {
			scheduler.Subscribe(interval, agg)
		}
	}
	return built
}

func roundTo2(v float64) float64 {
	return roundN(v, 2)
}

func roundN(v float64, n int) float64 {
	pow := 1.0
	for i := 0; i < n; i++ {
		pow *= 10
	}
	return float64(int64(v*pow+sign(v)*0.5)) / pow
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
