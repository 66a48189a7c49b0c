// Package localstore implements LocalStore (spec component C5): the
// GORM-backed parameter database holding per-second base tables and their
// rolled-up aggregates, mirroring original_source's
// DatabaseManagerAcoustic table shape on top of the teacher's
// internal/datastore GORM conventions.
package localstore

import (
	"time"

	"github.com/robudan/acoustic-logger/internal/errors"
	"gorm.io/gorm"
)

// ValueRow is the schema shared by every base parameter table (LAeq, LAF,
// LAFmin, LAFmax, ...) and by every rolled-up interval table
// (LAeq1min...LAeq24h). Grounded on
// original_source/src/acquisition/acoustic_stream.py's
// _create_table_if_not_exists.
type ValueRow struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"not null;index:idx_timestamp"`
	Value        float64   `gorm:"not null"`
	IsSent       bool      `gorm:"not null;default:false;index:idx_is_sent"`
	IsAggregated bool      `gorm:"not null;default:false;index:idx_is_aggregated"`
}

// PercentileRow backs LAF_percentiles_{1min,24h}.
type PercentileRow struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"not null;index:idx_timestamp"`
	L5           float64
	L10          float64
	L50          float64
	L90          float64
	L95          float64
	IsSent       bool `gorm:"not null;default:false;index:idx_is_sent"`
	IsAggregated bool `gorm:"not null;default:false;index:idx_is_aggregated"`
}

// LdenRow backs the Lden table (spec §4.7).
type LdenRow struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp        time.Time `gorm:"not null;index:idx_timestamp"`
	LdayEU           float64
	LdayRO           float64
	TimestampLdayRO  time.Time
	LeveningEU       float64
	LeveningRO       float64
	TimestampLevRO   time.Time
	LnightEU         float64
	LnightRO         float64
	TimestampNightRO time.Time
	LdenEU           float64
	LdenRO           float64
	IsSent           bool `gorm:"not null;default:false;index:idx_is_sent"`
	IsAggregated     bool `gorm:"not null;default:false;index:idx_is_aggregated"`
}

// ULdenRow backs the U_Lden table (spec §4.9).
type ULdenRow struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"not null;index:idx_timestamp"`
	ULden        float64
	IsSent       bool `gorm:"not null;default:false;index:idx_is_sent"`
	IsAggregated bool `gorm:"not null;default:false;index:idx_is_aggregated"`
}

// UnsentRow is one row returned by FetchUnsent, carrying its primary key
// so the caller can confirm it later via MarkSent. Columns holds every
// non-bookkeeping column of the row keyed by its database column name,
// mirroring data_sync_manager.py's schema_map-driven document assembly
// (column_names paired positionally with each fetched row) rather than
// assuming a single "value" column: percentile, Lden and U_Lden tables
// carry a different column set than the per-second base tables.
type UnsentRow struct {
	ID        uint
	Timestamp time.Time
	Columns   map[string]any
}

// SchemaKind identifies which of the four row shapes a table uses.
// Table names are fixed and known up front (spec §4.5/§4.7/§4.8/§4.9), so
// dispatch is a name switch rather than an information_schema query.
type SchemaKind int

const (
	SchemaValue SchemaKind = iota
	SchemaPercentile
	SchemaLden
	SchemaULden
)

// TableSchema reports which row shape table uses. Every base table
// (LAeq, LAF, LAFmin, LAFmax, ...) and every rolled-up interval table
// (LAeq1min ... LAeq24h) shares ValueRow; Lden, U_Lden and the two
// LAF_percentiles_* tables have their own dedicated schemas.
func TableSchema(table string) SchemaKind {
	switch table {
	case "Lden":
		return SchemaLden
	case "U_Lden":
		return SchemaULden
	case "LAF_percentiles_1min", "LAF_percentiles_24h":
		return SchemaPercentile
	default:
		return SchemaValue
	}
}

// ValueAt pairs a value with the timestamp it was recorded at.
type ValueAt struct {
	Value     float64
	Timestamp time.Time
}

// MaxFetchBatch is the cap on rows returned per FetchUnsent call, per
// spec §4.10 ("fetch up to 3,600 unsent rows").
const MaxFetchBatch = 3600

// Store is the LocalStore contract (spec §4.5).
type Store interface {
	EnsureTable(table string) error
	EnsurePercentileTable(table string) error
	EnsureLdenTable() error
	EnsureULdenTable() error

	Insert(table string, ts time.Time, value float64) error
	InsertPercentiles(table string, ts time.Time, l5, l10, l50, l90, l95 float64) error
	InsertLden(row *LdenRow) error
	InsertULden(ts time.Time, uLden float64) error

	FetchValues(table string, start, end time.Time) ([]float64, error)
	FetchValuesWithTs(table string, start, end time.Time) ([]ValueAt, error)
	FetchUnsent(table string, limit int) ([]UnsentRow, error)
	MarkSent(table string, ids []uint) error

	// LdenComponents reads the EU component levels written to the Lden
	// table for the 24h window ending at ts, per the UncertaintyAggregator
	// precondition (spec §4.9).
	LdenComponents(ts time.Time) (lday, levening, lnight float64, ok bool, err error)

	// ListTables returns every base/aggregate table name known to the
	// store, used by RemoteSync's tabular discovery loop.
	ListTables() ([]string, error)

	// PurgeOlderThan deletes rows in table older than cutoff, returning
	// the number of rows removed. Grounded on diskmanager's age-based
	// cleanup pattern, repurposed for per-row timestamp retention since
	// GORM/MySQL scheduled events are not portable to the SQLite backend.
	PurgeOlderThan(table string, cutoff time.Time) (int64, error)

	DB() *gorm.DB
	Close() error
}

func wrapErr(err error, op, table string) error {
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("localstore").
		Category(errors.CategoryDatabase).
		Context("op", op).
		Context("table", table).
		Build()
}
