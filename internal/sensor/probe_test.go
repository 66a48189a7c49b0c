package sensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeMatchesKeyword(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ttyUSB0")
	require.NoError(t, os.WriteFile(target, nil, 0o600))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "usb-Acme_mk4_SN123-if00")))

	model, resolved, err := Probe(dir, []string{"mk3", "mk4"})
	require.NoError(t, err)
	assert.Equal(t, ModelMk4, model)
	assert.Equal(t, target, resolved)
}

func TestProbeNoMatchReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Probe(dir, []string{"mk3", "mk4"})
	assert.Error(t, err)
}
