package diskmanager

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/localstore"
)

func TestPurgeAllDeletesOldRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := localstore.OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureTable("LAeq"))
	now := time.Now()
	require.NoError(t, store.Insert("LAeq", now.AddDate(0, 0, -30), 1.0))
	require.NoError(t, store.Insert("LAeq", now, 2.0))

	m := NewManager(store, 14, time.Hour, nil)
	m.purgeAll()

	values, err := store.FetchValues("LAeq", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, []float64{2.0}, values)
}
