package acquisition

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/clock"
	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/sensor"
)

func TestComputeParamDispatch(t *testing.T) {
	laf := []float64{50, 60, 40}
	leq := []float64{60, 80}

	v, ok := computeParam("LAF", laf, leq)
	require.True(t, ok)
	require.Equal(t, 50.0, v)

	v, ok = computeParam("LAFmin", laf, leq)
	require.True(t, ok)
	require.Equal(t, 40.0, v)

	v, ok = computeParam("LAFmax", laf, leq)
	require.True(t, ok)
	require.Equal(t, 60.0, v)

	v, ok = computeParam("LAeq", laf, leq)
	require.True(t, ok)
	require.InDelta(t, 77.04, v, 0.01)

	_, ok = computeParam("Unknown", laf, leq)
	require.False(t, ok)
}

func TestSamplerWritesBaseRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := localstore.OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	clk, err := clock.New("UTC")
	require.NoError(t, err)

	driver := sensor.NewFake()
	s := New(driver, store, clk, []string{"LAF", "LAeq"}, 500*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	values, err := store.FetchValues("LAF", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, values)
}
