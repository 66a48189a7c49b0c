package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartInstantIsStableAcrossCalls(t *testing.T) {
	p, err := New("UTC")
	require.NoError(t, err)

	first := p.StartInstant()
	time.Sleep(5 * time.Millisecond)
	second := p.StartInstant()

	assert.Equal(t, first, second)
	assert.Zero(t, first.Nanosecond())
}

func TestResetAllowsRealignment(t *testing.T) {
	p, err := New("UTC")
	require.NoError(t, err)

	first := p.StartInstant()
	p.Reset()
	time.Sleep(1100 * time.Millisecond)
	second := p.StartInstant()

	assert.NotEqual(t, first, second)
}

func TestSleepToNextSecondRespectsCancellation(t *testing.T) {
	p, err := New("UTC")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	p.SleepToNextSecond(ctx)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Not/AZone")
	assert.Error(t, err)
}
