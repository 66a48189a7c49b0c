package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/schedule"
)

func TestLAFPercentileAggregatorWritesPercentiles(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureTable("LAF"))

	base := time.Date(2026, 1, 1, 10, 4, 0, 0, time.UTC)
	samples := []float64{10, 20, 30, 40}
	for i, v := range samples {
		require.NoError(t, store.Insert("LAF", base.Add(time.Duration(i)*time.Second), v))
	}

	agg := NewLAFPercentileAggregator(store, nil)
	end := base.Add(time.Minute)
	agg.OnInterval(context.Background(), schedule.Interval1Min, base, end)

	var count int64
	require.NoError(t, store.DB().Table("LAF_percentiles_1min").Count(&count).Error)
	require.EqualValues(t, 1, count)
}
