package localstore

import (
	"os"
	"path/filepath"

	"github.com/robudan/acoustic-logger/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite opens an embedded SQLite database at path, used for local
// development and tests in place of the MySQL backend. Grounded on the
// teacher's internal/datastore/sqlite.go PRAGMA tuning.
func OpenSQLite(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("localstore").
				Category(errors.CategoryDatabase).
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -4000",
		"PRAGMA temp_store = MEMORY",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, errors.New(err).
				Component("localstore").
				Category(errors.CategoryDatabase).
				Context("pragma", pragma).
				Build()
		}
	}

	return &gormStore{db: db}, nil
}
