package aggregation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/schedule"
)

func openTestStore(t *testing.T) localstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := localstore.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLAeqAggregatorWritesHierarchicalRollup(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureTable("LAeq"))

	base := time.Date(2026, 1, 1, 10, 4, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, store.Insert("LAeq", base.Add(time.Duration(i)*time.Second), 70.0))
	}

	agg := NewLAeqAggregator(store, nil)
	end := base.Add(time.Minute)
	agg.OnInterval(context.Background(), schedule.Interval1Min, base, end)

	values, err := store.FetchValues("LAeq1min", end.Add(-time.Second), end.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.InDelta(t, 70.0, values[0], 0.01)
}
