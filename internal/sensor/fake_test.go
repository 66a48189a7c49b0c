package sensor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeReadInstantLevel(t *testing.T) {
	f := NewFake()
	v, err := f.ReadInstantLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestFakeSetNaNProducesNonFinite(t *testing.T) {
	f := NewFake()
	f.SetNaN()

	v, err := f.ReadInstantLevel(context.Background())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestFakeWriteTauRoundTrips(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.WriteTau(context.Background(), 0.25))
	assert.InDelta(t, 0.25, f.Tau, 1e-9)
}
