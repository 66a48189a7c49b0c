package localstore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robudan/acoustic-logger/internal/errors"
	"github.com/robudan/acoustic-logger/internal/logging"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenMySQL opens (creating if necessary) the per-parameter MySQL
// database named database on host:port, mirroring the original's
// `CREATE DATABASE IF NOT EXISTS <P>` pattern from acoustic_stream.py's
// DatabaseManagerAcoustic, grounded on the teacher's
// internal/datastore/mysql.go DSN construction and GORM logger wiring.
func OpenMySQL(host, port, username, password, database string) (Store, error) {
	adminDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/?charset=utf8mb4&parseTime=True&loc=Local",
		username, password, host, port)
	admin, err := gorm.Open(mysql.Open(adminDSN), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryDatabase).
			Context("host", host).
			Build()
	}
	if err := admin.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)).Error; err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryDatabase).
			Context("database", database).
			Build()
	}
	if sqlDB, err := admin.DB(); err == nil {
		sqlDB.Close()
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		username, password, host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryDatabase).
			Context("database", database).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).Component("localstore").Category(errors.CategoryDatabase).Build()
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &gormStore{db: db}, nil
}

func gormLogger() gormlogger.Interface {
	return gormlogger.New(
		slogWriter{logger: logging.ForService("localstore")},
		gormlogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      gormlogger.Warn,
		},
	)
}

// slogWriter adapts gorm's Printf-style logger.Writer to slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Warn(fmt.Sprintf(format, args...))
}
