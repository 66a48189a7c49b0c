package app

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robudan/acoustic-logger/internal/conf"
)

func TestOpenStoreWithRetrySucceedsImmediately(t *testing.T) {
	settings := &conf.Settings{}
	settings.LocalStore.Driver = "sqlite"
	settings.LocalStore.Path = filepath.Join(t.TempDir(), "store.db")

	store, err := openStoreWithRetry(settings, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()
}

// The unsupported-driver failure path is not re-tested here: it would
// exercise the full storeOpenMaxAttempts retry/backoff schedule, making
// it a multi-second test for no additional coverage over
// localstore.Open's own driver-switch logic.
