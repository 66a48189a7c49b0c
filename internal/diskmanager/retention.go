package diskmanager

import (
	"context"
	"log/slog"
	"time"

	"github.com/robudan/acoustic-logger/internal/localstore"
)

// Manager runs the daily retention purge task (spec §7): every table in
// the local store has rows older than the configured retention window
// deleted. Grounded on original_source's per-table MySQL
// `CREATE EVENT ... DELETE FROM ... WHERE TIMESTAMP < NOW() - INTERVAL R
// DAY`, driven here by a ticker instead since SQLite has no schedulable
// events.
type Manager struct {
	store         localstore.Store
	retentionDays int
	interval      time.Duration
	log           *slog.Logger
}

// NewManager returns a Manager that purges rows older than retentionDays
// once per interval. A zero interval defaults to 24h.
func NewManager(store localstore.Store, retentionDays int, interval time.Duration, log *slog.Logger) *Manager {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, retentionDays: retentionDays, interval: interval, log: log.With("service", "diskmanager")}
}

// Run purges on startup, then once per m.interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.purgeAll()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.purgeAll()
		}
	}
}

func (m *Manager) purgeAll() {
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)

	tables, err := m.store.ListTables()
	if err != nil {
		m.log.Error("retention purge: listing tables failed", "error", err)
		return
	}

	var totalDeleted int64
	for _, table := range tables {
		n, err := m.store.PurgeOlderThan(table, cutoff)
		if err != nil {
			m.log.Error("retention purge: table failed", "table", table, "error", err)
			continue
		}
		totalDeleted += n
	}

	m.log.Info("retention purge complete", "cutoff", cutoff, "tables", len(tables), "rows_deleted", totalDeleted)
}
