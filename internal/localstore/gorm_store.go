package localstore

import (
	"time"

	"gorm.io/gorm"
)

// gormStore implements Store on top of a *gorm.DB. Both the MySQL and
// SQLite backends share this implementation; only Open differs (DSN,
// driver, pragmas), mirroring the teacher's datastore package offering
// both drivers behind one Interface.
type gormStore struct {
	db *gorm.DB
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) EnsureTable(table string) error {
	return wrapErr(s.db.Table(table).AutoMigrate(&ValueRow{}), "ensure_table", table)
}

func (s *gormStore) EnsurePercentileTable(table string) error {
	return wrapErr(s.db.Table(table).AutoMigrate(&PercentileRow{}), "ensure_percentile_table", table)
}

func (s *gormStore) EnsureLdenTable() error {
	return wrapErr(s.db.Table("Lden").AutoMigrate(&LdenRow{}), "ensure_lden_table", "Lden")
}

func (s *gormStore) EnsureULdenTable() error {
	return wrapErr(s.db.Table("U_Lden").AutoMigrate(&ULdenRow{}), "ensure_ulden_table", "U_Lden")
}

func (s *gormStore) Insert(table string, ts time.Time, value float64) error {
	row := ValueRow{Timestamp: ts, Value: value}
	return wrapErr(s.db.Table(table).Create(&row).Error, "insert", table)
}

func (s *gormStore) InsertPercentiles(table string, ts time.Time, l5, l10, l50, l90, l95 float64) error {
	row := PercentileRow{Timestamp: ts, L5: l5, L10: l10, L50: l50, L90: l90, L95: l95}
	return wrapErr(s.db.Table(table).Create(&row).Error, "insert_percentiles", table)
}

func (s *gormStore) InsertLden(row *LdenRow) error {
	return wrapErr(s.db.Table("Lden").Create(row).Error, "insert_lden", "Lden")
}

func (s *gormStore) InsertULden(ts time.Time, uLden float64) error {
	row := ULdenRow{Timestamp: ts, ULden: uLden}
	return wrapErr(s.db.Table("U_Lden").Create(&row).Error, "insert_ulden", "U_Lden")
}

func (s *gormStore) FetchValues(table string, start, end time.Time) ([]float64, error) {
	var rows []ValueRow
	err := s.db.Table(table).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_values", table)
	}
	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.Value
	}
	return values, nil
}

func (s *gormStore) FetchValuesWithTs(table string, start, end time.Time) ([]ValueAt, error) {
	var rows []ValueRow
	err := s.db.Table(table).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_values_with_ts", table)
	}
	out := make([]ValueAt, len(rows))
	for i, r := range rows {
		out[i] = ValueAt{Value: r.Value, Timestamp: r.Timestamp}
	}
	return out, nil
}

// FetchUnsent dispatches to the row shape TableSchema(table) reports,
// so percentile/Lden/U_Lden tables replicate their own columns instead
// of being forced through the base tables' single "value" column.
// Grounded on data_sync_manager.py's schema_map, which is built from
// each table's actual information_schema.COLUMNS and ships every one of
// them, not just a fixed subset.
func (s *gormStore) FetchUnsent(table string, limit int) ([]UnsentRow, error) {
	if limit <= 0 || limit > MaxFetchBatch {
		limit = MaxFetchBatch
	}
	switch TableSchema(table) {
	case SchemaPercentile:
		return s.fetchUnsentPercentile(table, limit)
	case SchemaLden:
		return s.fetchUnsentLden(table, limit)
	case SchemaULden:
		return s.fetchUnsentULden(table, limit)
	default:
		return s.fetchUnsentValue(table, limit)
	}
}

func (s *gormStore) fetchUnsentValue(table string, limit int) ([]UnsentRow, error) {
	var rows []ValueRow
	err := s.db.Table(table).
		Where("is_sent = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_unsent", table)
	}
	out := make([]UnsentRow, len(rows))
	for i, r := range rows {
		out[i] = UnsentRow{ID: r.ID, Timestamp: r.Timestamp, Columns: map[string]any{"value": r.Value}}
	}
	return out, nil
}

func (s *gormStore) fetchUnsentPercentile(table string, limit int) ([]UnsentRow, error) {
	var rows []PercentileRow
	err := s.db.Table(table).
		Where("is_sent = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_unsent", table)
	}
	out := make([]UnsentRow, len(rows))
	for i, r := range rows {
		out[i] = UnsentRow{ID: r.ID, Timestamp: r.Timestamp, Columns: map[string]any{
			"l5": r.L5, "l10": r.L10, "l50": r.L50, "l90": r.L90, "l95": r.L95,
		}}
	}
	return out, nil
}

func (s *gormStore) fetchUnsentLden(table string, limit int) ([]UnsentRow, error) {
	var rows []LdenRow
	err := s.db.Table(table).
		Where("is_sent = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_unsent", table)
	}
	out := make([]UnsentRow, len(rows))
	for i, r := range rows {
		out[i] = UnsentRow{ID: r.ID, Timestamp: r.Timestamp, Columns: map[string]any{
			"lday_eu":            r.LdayEU,
			"lday_ro":            r.LdayRO,
			"timestamp_lday_ro":  r.TimestampLdayRO,
			"levening_eu":        r.LeveningEU,
			"levening_ro":        r.LeveningRO,
			"timestamp_lev_ro":   r.TimestampLevRO,
			"lnight_eu":          r.LnightEU,
			"lnight_ro":          r.LnightRO,
			"timestamp_night_ro": r.TimestampNightRO,
			"lden_eu":            r.LdenEU,
			"lden_ro":            r.LdenRO,
		}}
	}
	return out, nil
}

func (s *gormStore) fetchUnsentULden(table string, limit int) ([]UnsentRow, error) {
	var rows []ULdenRow
	err := s.db.Table(table).
		Where("is_sent = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "fetch_unsent", table)
	}
	out := make([]UnsentRow, len(rows))
	for i, r := range rows {
		out[i] = UnsentRow{ID: r.ID, Timestamp: r.Timestamp, Columns: map[string]any{"u_lden": r.ULden}}
	}
	return out, nil
}

func (s *gormStore) MarkSent(table string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.Table(table).Where("id IN ?", ids).Update("is_sent", true).Error
	return wrapErr(err, "mark_sent", table)
}

func (s *gormStore) LdenComponents(ts time.Time) (lday, levening, lnight float64, ok bool, err error) {
	var row LdenRow
	dbErr := s.db.Table("Lden").Where("timestamp = ?", ts).First(&row).Error
	if dbErr != nil {
		if dbErr == gorm.ErrRecordNotFound {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, wrapErr(dbErr, "lden_components", "Lden")
	}
	return row.LdayEU, row.LeveningEU, row.LnightEU, true, nil
}

func (s *gormStore) ListTables() ([]string, error) {
	var names []string
	err := s.db.Raw(`SELECT name FROM sqlite_master WHERE type='table'`).Scan(&names).Error
	if err != nil {
		// Not SQLite; fall back to MySQL's information_schema.
		err = s.db.Raw(`SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE()`).Scan(&names).Error
	}
	if err != nil {
		return nil, wrapErr(err, "list_tables", "")
	}
	return names, nil
}

func (s *gormStore) PurgeOlderThan(table string, cutoff time.Time) (int64, error) {
	res := s.db.Table(table).Where("timestamp < ?", cutoff).Delete(&ValueRow{})
	if res.Error != nil {
		return 0, wrapErr(res.Error, "purge", table)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrapErr(err, "close", "")
	}
	return sqlDB.Close()
}
