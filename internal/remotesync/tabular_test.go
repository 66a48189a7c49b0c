package remotesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/robudan/acoustic-logger/internal/localstore"
)

func TestGranularityForTableName(t *testing.T) {
	cases := map[string]string{
		"laeq1min":  "minutes",
		"laeq5min":  "minutes",
		"laeq30min": "hours",
		"laeq1h":    "hours",
		"laeq24h":   "seconds",
		"laf":       "seconds",
	}
	for table, want := range cases {
		assert.Equal(t, want, granularityFor(table), table)
	}
}

func TestCollectionNameLowercases(t *testing.T) {
	assert.Equal(t, "laeq1min", collectionName("LAeq1min"))
}

func TestExcludedTablesFiltersSystemSchemas(t *testing.T) {
	assert.True(t, excludedTables["mysql"])
	assert.False(t, excludedTables["laeq1min"])
}

func TestRowToDocCarriesEveryColumnNotJustValue(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	base := localstore.UnsentRow{ID: 1, Timestamp: ts, Columns: map[string]any{"value": 70.5}}
	doc := rowToDoc(base)
	assert.Equal(t, ts, doc["timestamp"])
	assert.Equal(t, 70.5, doc["value"])

	percentile := localstore.UnsentRow{ID: 2, Timestamp: ts, Columns: map[string]any{
		"l5": 1.0, "l10": 2.0, "l50": 3.0, "l90": 4.0, "l95": 5.0,
	}}
	doc = rowToDoc(percentile)
	assert.Equal(t, 1.0, doc["l5"])
	assert.Equal(t, 5.0, doc["l95"])
	_, hasValue := doc["value"]
	assert.False(t, hasValue, "percentile rows must not be forced through a generic value column")

	uLden := localstore.UnsentRow{ID: 3, Timestamp: ts, Columns: map[string]any{"u_lden": 1.23}}
	doc = rowToDoc(uLden)
	assert.Equal(t, 1.23, doc["u_lden"])
	_, hasValue = doc["value"]
	assert.False(t, hasValue)
}
