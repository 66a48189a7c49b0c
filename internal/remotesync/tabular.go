package remotesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/semaphore"

	"github.com/robudan/acoustic-logger/internal/errors"
	"github.com/robudan/acoustic-logger/internal/localstore"
)

// excludedTables mirrors discover_databases_and_tables's system-schema
// exclusion list; LocalStore has no such schemas, but the filter is kept
// so a MySQL-backed deployment (spec §9's production backend) behaves
// identically to the original.
var excludedTables = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

const (
	discoverInterval = 10 * time.Minute
	fetchInterval    = time.Second
	defaultWorkers   = 10
)

// TabularSync replicates unsent rows from every LocalStore table to the
// remote database, confirming insertion before marking rows sent.
// Grounded on data_sync_manager.py's MySQLDataFetcher +
// MongoDBDataTransfer pair, collapsed into one Go type since both sides
// share a process and need no queue indirection.
type TabularSync struct {
	store    localstore.Store
	conn     *Connection
	database string
	workers  int
	log      *slog.Logger

	encoder *zstd.Encoder

	inFlight sync.Map // table -> *atomic.Bool (true while a batch is unconfirmed)
	tables   atomic.Value // []string
}

// NewTabularSync returns a TabularSync. workers bounds concurrent batch
// uploads (original's num_workers=10, teacher pattern:
// ffmpeg.Manager.MaxProcesses).
func NewTabularSync(store localstore.Store, conn *Connection, database string, workers int, log *slog.Logger) *TabularSync {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	enc, _ := zstd.NewWriter(nil)
	t := &TabularSync{store: store, conn: conn, database: database, workers: workers, log: log.With("service", "remotesync.tabular"), encoder: enc}
	t.tables.Store([]string{})
	return t
}

// Run discovers tables, then fetches and uploads unsent batches at a
// steady cadence until ctx is cancelled.
func (t *TabularSync) Run(ctx context.Context) error {
	select {
	case <-t.conn.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.discoverTables(); err != nil {
		t.log.Error("table discovery failed", "error", err)
	}

	discoverTicker := time.NewTicker(discoverInterval)
	defer discoverTicker.Stop()
	fetchTicker := time.NewTicker(fetchInterval)
	defer fetchTicker.Stop()

	sem := semaphore.NewWeighted(int64(t.workers))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-discoverTicker.C:
			if err := t.discoverTables(); err != nil {
				t.log.Error("table discovery failed", "error", err)
			}
		case <-fetchTicker.C:
			for _, table := range t.currentTables() {
				table := table
				if !sem.TryAcquire(1) {
					continue // worker pool saturated, try this table next tick
				}
				go func() {
					defer sem.Release(1)
					t.syncTable(ctx, table)
				}()
			}
		}
	}
}

func (t *TabularSync) currentTables() []string {
	return t.tables.Load().([]string)
}

func (t *TabularSync) discoverTables() error {
	names, err := t.store.ListTables()
	if err != nil {
		return wrapMongoErr(err, "discover", t.database)
	}
	var kept []string
	for _, name := range names {
		if excludedTables[strings.ToLower(name)] {
			continue
		}
		kept = append(kept, name)
		if _, loaded := t.inFlight.LoadOrStore(name, new(atomic.Bool)); !loaded {
			t.log.Debug("discovered table", "table", name)
		}
	}
	t.tables.Store(kept)
	return nil
}

// syncTable fetches one unsent batch (if none is already outstanding),
// uploads it, and marks it sent on acknowledgement. At-most-one batch
// in-flight per table (original's last_success gate).
func (t *TabularSync) syncTable(ctx context.Context, table string) {
	gateVal, _ := t.inFlight.LoadOrStore(table, new(atomic.Bool))
	gate := gateVal.(*atomic.Bool)
	if !gate.CompareAndSwap(false, true) {
		return
	}
	defer gate.Store(false)

	rows, err := t.store.FetchUnsent(table, localstore.MaxFetchBatch)
	if err != nil {
		t.log.Error("fetch unsent failed", "table", table, "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	if err := t.ensureCollection(ctx, table); err != nil {
		t.log.Error("ensure collection failed", "table", table, "error", err)
		return
	}

	txID := uuid.New().String()[:8]
	if err := t.uploadAndConfirm(ctx, table, rows); err != nil {
		t.log.Error("upload failed", "tx", txID, "table", table, "rows", len(rows), "error", err)
	} else {
		t.log.Debug("batch uploaded", "tx", txID, "table", table, "rows", len(rows))
	}
}

// uploadAndConfirm mirrors insert_data + handle_insert_success: compress
// the batch (replacing zlib+pickle with JSON+zstd, same two-stage
// shape), insert_many, then mark_success.
func (t *TabularSync) uploadAndConfirm(ctx context.Context, table string, rows []localstore.UnsentRow) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return wrapMongoErr(err, "marshal", table)
	}
	compressed := t.encoder.EncodeAll(payload, nil)
	t.log.Debug("compressed batch", "table", table, "raw_bytes", len(payload), "compressed_bytes", len(compressed))

	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = rowToDoc(row)
	}

	collection := t.conn.Client().Database(t.database).Collection(collectionName(table))
	res, err := collection.InsertMany(ctx, docs)
	if err != nil {
		return wrapMongoErr(err, "insert_many", table)
	}
	if len(res.InsertedIDs) != len(docs) {
		return errors.Newf("remotesync: partial insert for table %s: %d of %d acknowledged", table, len(res.InsertedIDs), len(docs)).
			Component("remotesync").
			Category(errors.CategoryRemote).
			Build()
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := t.store.MarkSent(table, ids); err != nil {
		return wrapMongoErr(err, "mark_sent", table)
	}
	return nil
}

// rowToDoc ships every column a fetched row carries (schema_map's
// behavior in data_sync_manager.py), not a fixed "value" field:
// percentile, Lden and U_Lden rows have no such column at all.
func rowToDoc(row localstore.UnsentRow) bson.M {
	doc := bson.M{"timestamp": row.Timestamp}
	for col, val := range row.Columns {
		doc[col] = val
	}
	return doc
}

// ensureCollection creates a Mongo time-series collection with the
// granularity chosen by table-name substring, or a plain TTL-indexed
// collection for "connectivity" — verbatim from ensure_collection_exists.
func (t *TabularSync) ensureCollection(ctx context.Context, table string) error {
	name := collectionName(table)
	db := t.conn.Client().Database(t.database)

	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return wrapMongoErr(err, "list_collections", table)
	}
	if len(names) > 0 {
		return nil
	}

	const ttlSeconds = 60 * 60 * 24 * 14 // 14 days

	if name == "connectivity" {
		if err := db.CreateCollection(ctx, name); err != nil {
			return wrapMongoErr(err, "create_collection", table)
		}
		idx := mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		}
		_, err := db.Collection(name).Indexes().CreateOne(ctx, idx)
		return wrapMongoErr(err, "create_index", table)
	}

	tsOpts := options.TimeSeries().SetTimeField("timestamp").SetGranularity(granularityFor(name))
	if err := db.CreateCollection(ctx, name, options.CreateCollection().SetTimeSeriesOptions(tsOpts)); err != nil {
		return wrapMongoErr(err, "create_collection", table)
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
	}
	_, err = db.Collection(name).Indexes().CreateOne(ctx, idx)
	return wrapMongoErr(err, "create_index", table)
}

func granularityFor(collectionName string) string {
	switch {
	case strings.Contains(collectionName, "1min"), strings.Contains(collectionName, "5min"):
		return "minutes"
	case strings.Contains(collectionName, "30min"), strings.Contains(collectionName, "1h"):
		return "hours"
	default:
		return "seconds"
	}
}

func collectionName(table string) string {
	return strings.ToLower(table)
}
