package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInsertAndFetchValues(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureTable("LAeq"))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert("LAeq", base, 50.0))
	require.NoError(t, store.Insert("LAeq", base.Add(time.Second), 55.0))

	values, err := store.FetchValues("LAeq", base, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []float64{50.0, 55.0}, values)
}

func TestFetchUnsentAndMarkSent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureTable("LAeq"))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert("LAeq", base.Add(time.Duration(i)*time.Second), float64(i)))
	}

	rows, err := store.FetchUnsent("LAeq", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	ids := []uint{rows[0].ID, rows[1].ID}
	require.NoError(t, store.MarkSent("LAeq", ids))

	remaining, err := store.FetchUnsent("LAeq", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, rows[2].ID, remaining[0].ID)
}

func TestPurgeOlderThan(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureTable("LAeq"))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert("LAeq", now.Add(-48*time.Hour), 1.0))
	require.NoError(t, store.Insert("LAeq", now, 2.0))

	deleted, err := store.PurgeOlderThan("LAeq", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	values, err := store.FetchValues("LAeq", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.0}, values)
}

func TestLdenComponentsMissingReturnsNotOK(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureLdenTable())

	_, _, _, ok, err := store.LdenComponents(time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchUnsentPercentileTableCarriesAllColumns(t *testing.T) {
	store := openTestStore(t)
	table := "LAF_percentiles_1min"
	require.NoError(t, store.EnsurePercentileTable(table))

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertPercentiles(table, ts, 1, 2, 3, 4, 5))

	rows, err := store.FetchUnsent(table, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cols := rows[0].Columns
	assert.Equal(t, 1.0, cols["l5"])
	assert.Equal(t, 2.0, cols["l10"])
	assert.Equal(t, 3.0, cols["l50"])
	assert.Equal(t, 4.0, cols["l90"])
	assert.Equal(t, 5.0, cols["l95"])
	_, hasValue := cols["value"]
	assert.False(t, hasValue, "percentile rows must not carry a generic value column")
}

func TestFetchUnsentLdenTableCarriesAllColumns(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureLdenTable())

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertLden(&LdenRow{
		Timestamp:  ts,
		LdayEU:     60.1,
		LeveningEU: 55.2,
		LnightEU:   50.3,
		LdenEU:     61.4,
	}))

	rows, err := store.FetchUnsent("Lden", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cols := rows[0].Columns
	assert.Equal(t, 60.1, cols["lday_eu"])
	assert.Equal(t, 55.2, cols["levening_eu"])
	assert.Equal(t, 50.3, cols["lnight_eu"])
	assert.Equal(t, 61.4, cols["lden_eu"])
}

func TestFetchUnsentULdenTableCarriesAllColumns(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureULdenTable())

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertULden(ts, 1.23))

	rows, err := store.FetchUnsent("U_Lden", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.23, rows[0].Columns["u_lden"])
}

func TestTableSchemaDispatch(t *testing.T) {
	assert.Equal(t, SchemaValue, TableSchema("LAeq"))
	assert.Equal(t, SchemaValue, TableSchema("LAeq1min"))
	assert.Equal(t, SchemaPercentile, TableSchema("LAF_percentiles_1min"))
	assert.Equal(t, SchemaPercentile, TableSchema("LAF_percentiles_24h"))
	assert.Equal(t, SchemaLden, TableSchema("Lden"))
	assert.Equal(t, SchemaULden, TableSchema("U_Lden"))
}
