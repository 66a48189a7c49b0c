package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestAudioTimestampPicksNewest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"2026-01-01 10-00-00.mp3",
		"2026-01-01 10-05-00.mp3",
		"not-a-timestamp.mp3",
		"2026-01-01 10-02-00.wav",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	latest, ok := latestAudioTimestamp(dir)
	require.True(t, ok)
	assert.Equal(t, 5, latest.Minute())
}

func TestLatestAudioTimestampEmptyDir(t *testing.T) {
	_, ok := latestAudioTimestamp(t.TempDir())
	assert.False(t, ok)
}

func TestNextOccurrenceRollsToTomorrow(t *testing.T) {
	from := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)
	next := nextOccurrence(from, ClockTime{Hour: 2, Min: 0, Sec: 3})
	assert.Equal(t, 2, next.Day())
	assert.Equal(t, 2, next.Hour())
}

func TestNextOccurrenceSameDay(t *testing.T) {
	from := time.Date(2026, 3, 1, 1, 0, 0, 0, time.Local)
	next := nextOccurrence(from, ClockTime{Hour: 2, Min: 0, Sec: 3})
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 2, next.Hour())
}

func TestStallWatchdogTriggersDisconnectAfterWindow(t *testing.T) {
	dir := t.TempDir()
	var disconnects atomic.Int32

	s := New(Config{
		AudioDir:      dir,
		StallInterval: 20 * time.Millisecond,
		StallWindow:   60 * time.Millisecond,
	}, Callbacks{
		Disconnect: func(ctx context.Context) { disconnects.Add(1) },
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.stallWatchdog(ctx)

	assert.GreaterOrEqual(t, disconnects.Load(), int32(1))
}

func TestTriggerDisconnectGuardsReentrancy(t *testing.T) {
	var calls atomic.Int32
	s := New(Config{}, Callbacks{
		Disconnect: func(ctx context.Context) {
			calls.Add(1)
			time.Sleep(30 * time.Millisecond)
		},
	}, nil)

	ctx := context.Background()
	go s.triggerDisconnect(ctx, "first")
	time.Sleep(5 * time.Millisecond)
	s.triggerDisconnect(ctx, "second")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
