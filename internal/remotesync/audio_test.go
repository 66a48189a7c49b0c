package remotesync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestampParsesMinuteFilename(t *testing.T) {
	ts, err := extractTimestamp("2026-03-01 13-05-00.mp3")
	require.NoError(t, err)
	assert.Equal(t, 5, ts.Minute())
	assert.Equal(t, 13, ts.Hour())
}

func TestExtractTimestampRejectsGarbage(t *testing.T) {
	_, err := extractTimestamp("not-a-timestamp.mp3")
	assert.Error(t, err)
}

func TestUpdatedParametersIsEmpty(t *testing.T) {
	assert.True(t, UpdatedParameters{}.isEmpty())
	assert.False(t, UpdatedParameters{AcousticSequences: []string{"LAeq"}}.isEmpty())
}

func TestAudioSyncScanFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2026-01-01 10-02-00.mp3", "2026-01-01 10-00-00.mp3", "note.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	a := NewAudioSync(dir, nil, nil, "data", "status", "dev1", nil)
	files := a.scanFiles()
	require.Len(t, files, 2)
	assert.Equal(t, "2026-01-01 10-00-00.mp3", files[0])
}
