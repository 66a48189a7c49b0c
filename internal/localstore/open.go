package localstore

import (
	"github.com/robudan/acoustic-logger/internal/conf"
	"github.com/robudan/acoustic-logger/internal/errors"
)

// Open selects and opens the configured backend, mirroring the teacher's
// datastore.New(settings) driver switch.
func Open(settings *conf.Settings) (Store, error) {
	switch settings.LocalStore.Driver {
	case "sqlite":
		return OpenSQLite(settings.LocalStore.Path)
	case "mysql":
		return OpenMySQL(
			settings.LocalStore.Host,
			settings.LocalStore.Port,
			settings.LocalStore.Username,
			settings.LocalStore.Password,
			settings.LocalStore.Database,
		)
	default:
		return nil, errors.Newf("localstore: unsupported driver %q", settings.LocalStore.Driver).
			Component("localstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
