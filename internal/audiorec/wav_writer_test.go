package audiorec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWavWriterNamesFileByMinuteStart(t *testing.T) {
	dir := t.TempDir()
	w := newWavWriter(dir, 48000)

	start := time.Date(2026, 1, 1, 10, 4, 0, 0, time.UTC)
	require.NoError(t, w.open(start))
	require.True(t, w.isOpen())
	require.NoError(t, w.write([]int16{1, 2, 3}))

	path, err := w.close()
	require.NoError(t, err)
	require.Contains(t, path, "2026-01-01 10-04-00.wav")
	require.False(t, w.isOpen())
}
