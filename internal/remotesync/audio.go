package remotesync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robudan/acoustic-logger/internal/localstore"
)

const (
	audioBatchSize      = 5
	audioPauseBetween   = 3 * time.Second
	audioIdlePause      = 40 * time.Second
	audioCollectionName = "audio"
	audioTTLSeconds     = 60 * 60 * 24 * 30 // 30 days
)

// AudioSync uploads staged minute-file audio to the remote document
// store, gated by a live-updatable loudness trigger. The local file is
// deleted after a confirmed upload or when the trigger check discards it;
// a failed LAeq1min lookup, file read or upload leaves it for the next
// scan. Grounded on audio_transfer.py's AudioTransfer.
type AudioSync struct {
	audioDir       string
	store          localstore.Store
	conn           *Connection
	database       string
	statusDatabase string
	deviceID       string
	log            *slog.Logger

	trigger atomic.Int64 // live audio_trigger threshold; -1 means "unknown"
}

// NewAudioSync returns an AudioSync scanning audioDir for staged
// ".<final format>" files — the spec names mp3 explicitly.
func NewAudioSync(audioDir string, store localstore.Store, conn *Connection, database, statusDatabase, deviceID string, log *slog.Logger) *AudioSync {
	if log == nil {
		log = slog.Default()
	}
	a := &AudioSync{audioDir: audioDir, store: store, conn: conn, database: database, statusDatabase: statusDatabase, deviceID: deviceID, log: log.With("service", "remotesync.audio")}
	a.trigger.Store(-1)
	return a
}

// Run ensures the remote collection exists, reads the initial trigger
// value, watches for trigger changes, and processes the staging
// directory on a cadence matching the original (batch every 3s when
// backlog > 5, otherwise one pass every 40s).
func (a *AudioSync) Run(ctx context.Context) error {
	select {
	case <-a.conn.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := a.ensureCollection(ctx); err != nil {
		a.log.Error("ensure audio collection failed", "error", err)
	}
	a.refreshTrigger(ctx)

	go a.watchTrigger(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		files := a.scanFiles()
		switch {
		case len(files) > audioBatchSize:
			a.log.Info("processing audio backlog in batches", "count", len(files))
			a.processBatches(ctx, files)
			if !sleepOrDone(ctx, audioPauseBetween) {
				return nil
			}
		case len(files) > 0:
			a.log.Info("processing audio files individually", "count", len(files))
			for _, f := range files {
				a.processFile(ctx, f)
			}
			if !sleepOrDone(ctx, audioIdlePause) {
				return nil
			}
		default:
			if !sleepOrDone(ctx, audioIdlePause) {
				return nil
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *AudioSync) scanFiles() []string {
	entries, err := os.ReadDir(a.audioDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".mp3") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (a *AudioSync) processBatches(ctx context.Context, files []string) {
	for i := 0; i < len(files); i += audioBatchSize {
		end := i + audioBatchSize
		if end > len(files) {
			end = len(files)
		}
		for _, f := range files[i:end] {
			a.processFile(ctx, f)
		}
	}
}

// processFile mirrors process_and_upload_file: fetch the LAeq1min value
// at the file's minute, upload if it meets the trigger, otherwise
// discard. The local file is removed in every terminal path.
func (a *AudioSync) processFile(ctx context.Context, filename string) {
	path := filepath.Join(a.audioDir, filename)
	ts, err := extractTimestamp(filename)
	if err != nil {
		a.log.Warn("skipping unparseable audio filename", "file", filename, "error", err)
		_ = os.Remove(path)
		return
	}

	value, found, err := a.laeq1minAt(ts)
	if err != nil {
		a.log.Error("failed to fetch LAeq1min for audio trigger check", "file", filename, "error", err)
		return // leave file in place, retry next scan
	}

	trigger := a.trigger.Load()
	if !found || trigger < 0 {
		a.log.Warn("no matching LAeq1min value or trigger unknown, deleting", "file", filename)
		_ = os.Remove(path)
		return
	}

	if value < float64(trigger) {
		a.log.Debug("below audio trigger, deleting", "file", filename, "value", value, "trigger", trigger)
		_ = os.Remove(path)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		a.log.Error("failed to read audio file", "file", filename, "error", err)
		return
	}

	doc := bson.M{"filename": filename, "audio_data": data, "timestamp": ts}
	collection := a.conn.Client().Database(a.database).Collection(audioCollectionName)
	res, err := collection.InsertOne(ctx, doc)
	if err != nil {
		a.log.Error("audio upload failed", "file", filename, "error", err)
		return
	}
	a.log.Info("audio file uploaded", "file", filename, "id", res.InsertedID)
	_ = os.Remove(path)
}

func (a *AudioSync) laeq1minAt(ts time.Time) (float64, bool, error) {
	rows, err := a.store.FetchValuesWithTs("LAeq1min", ts, ts.Add(time.Second))
	if err != nil {
		return 0, false, err
	}
	for _, row := range rows {
		if row.Timestamp.Equal(ts) {
			return row.Value, true, nil
		}
	}
	return 0, false, nil
}

func extractTimestamp(filename string) (time.Time, error) {
	stamp := strings.TrimSuffix(filename, ".mp3")
	return time.ParseInLocation("2006-01-02 15-04-00", stamp, time.Local)
}

func (a *AudioSync) ensureCollection(ctx context.Context) error {
	db := a.conn.Client().Database(a.database)
	names, err := db.ListCollectionNames(ctx, bson.M{"name": audioCollectionName})
	if err != nil {
		return wrapMongoErr(err, "list_collections", audioCollectionName)
	}
	if len(names) > 0 {
		return nil
	}
	if err := db.CreateCollection(ctx, audioCollectionName); err != nil {
		return wrapMongoErr(err, "create_collection", audioCollectionName)
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(audioTTLSeconds)),
	}
	_, err = db.Collection(audioCollectionName).Indexes().CreateOne(ctx, idx)
	return wrapMongoErr(err, "create_index", audioCollectionName)
}

func (a *AudioSync) refreshTrigger(ctx context.Context) {
	doc := a.conn.Client().Database(a.statusDatabase).Collection("microphones").FindOne(ctx, bson.M{"_id": a.deviceID})
	var result struct {
		AudioTrigger int64 `bson:"audio_trigger"`
	}
	if err := doc.Decode(&result); err != nil {
		a.log.Warn("no audio_trigger found on device document yet", "error", err)
		return
	}
	a.trigger.Store(result.AudioTrigger)
}

// watchTrigger mirrors watch_audio_trigger_changes: a Mongo change
// stream on the device document's audio_trigger field, kept current in
// memory for lock-free reads by processFile.
func (a *AudioSync) watchTrigger(ctx context.Context) {
	collection := a.conn.Client().Database(a.statusDatabase).Collection("microphones")
	pipeline := bson.A{bson.M{"$match": bson.M{
		"documentKey._id": a.deviceID,
		"operationType":   "update",
		"updateDescription.updatedFields.audio_trigger": bson.M{"$exists": true},
	}}}

	stream, err := collection.Watch(ctx, pipeline)
	if err != nil {
		a.log.Error("audio_trigger watch failed", "error", err)
		return
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var change struct {
			UpdateDescription struct {
				UpdatedFields struct {
					AudioTrigger int64 `bson:"audio_trigger"`
				} `bson:"updatedFields"`
			} `bson:"updateDescription"`
		}
		if err := stream.Decode(&change); err != nil {
			a.log.Warn("failed to decode audio_trigger change", "error", err)
			continue
		}
		a.trigger.Store(change.UpdateDescription.UpdatedFields.AudioTrigger)
	}
}
