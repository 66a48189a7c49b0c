package remotesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/robudan/acoustic-logger/internal/errors"
)

const devicestatusRefreshInterval = 25 * time.Second

// DeviceInfo is the static identification read from the sensor at
// startup, passed in by the caller (DeviceSupervisor's connect callback)
// rather than read from serial here, keeping this package free of a
// direct sensor dependency.
type DeviceInfo struct {
	Model             string
	Firmware          string
	ManufacturingDate time.Time
	CalibrationDate   time.Time
}

// UpdatedParameters mirrors the device document's updated_parameters
// sub-document: a remote-initiated request to change which sequences
// the sampler/aggregators run.
type UpdatedParameters struct {
	AcousticSequences []string `bson:"AcousticSequences"`
	SpectrumSequences []string `bson:"SpectrumSequences"`
	AudioSequences    []string `bson:"AudioSequences"`
}

func (p UpdatedParameters) isEmpty() bool {
	return len(p.AcousticSequences) == 0 && len(p.SpectrumSequences) == 0 && len(p.AudioSequences) == 0
}

// DeviceStatus periodically upserts the device-status document (spec §6)
// and reacts to remote-initiated parameter changes by rewriting
// parameters.json and invoking the onParametersChanged callback. Grounded on
// microphone_details.py's MicrophoneDetails.
type DeviceStatus struct {
	conn           *Connection
	statusDatabase string
	deviceID       string
	serialNumber   string
	parametersPath string

	onParametersChanged func(ctx context.Context)

	log *slog.Logger

	deviceConnected bool
	info            DeviceInfo
	temperature     *float64
}

// NewDeviceStatus returns a DeviceStatus for deviceID (the sensor serial
// number, used as the Mongo document _id).
func NewDeviceStatus(conn *Connection, statusDatabase, deviceID, serialNumber, parametersPath string, onParametersChanged func(ctx context.Context), log *slog.Logger) *DeviceStatus {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceStatus{
		conn:                conn,
		statusDatabase:      statusDatabase,
		deviceID:            deviceID,
		serialNumber:        serialNumber,
		parametersPath:      parametersPath,
		onParametersChanged: onParametersChanged,
		log:                 log.With("service", "remotesync.devicestatus"),
	}
}

// SetDeviceInfo records the connected sensor's identity for the next
// document upsert, and marks the device as connected.
func (d *DeviceStatus) SetDeviceInfo(info DeviceInfo) {
	d.deviceConnected = true
	d.info = info
}

// ClearDeviceInfo marks the device as disconnected for the next upsert.
func (d *DeviceStatus) ClearDeviceInfo() {
	d.deviceConnected = false
}

// SetTemperature records the sensor's most recently read temperature.
func (d *DeviceStatus) SetTemperature(celsius float64) {
	d.temperature = &celsius
}

// Run ensures the collection exists, upserts the initial document,
// watches for updated_parameters changes, and periodically refreshes
// the live status fields until ctx is cancelled.
func (d *DeviceStatus) Run(ctx context.Context) error {
	select {
	case <-d.conn.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := d.ensureCollection(ctx); err != nil {
		d.log.Error("ensure microphones collection failed", "error", err)
	}
	if err := d.upsertDocument(ctx); err != nil {
		d.log.Error("initial device document upsert failed", "error", err)
	}

	go d.watchParameterChanges(ctx)

	ticker := time.NewTicker(devicestatusRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.refreshStatus(ctx); err != nil {
				d.log.Error("device status refresh failed", "error", err)
			}
		}
	}
}

func (d *DeviceStatus) collection() *mongo.Collection {
	return d.conn.Client().Database(d.statusDatabase).Collection("microphones")
}

func (d *DeviceStatus) ensureCollection(ctx context.Context) error {
	names, err := d.conn.Client().Database(d.statusDatabase).ListCollectionNames(ctx, bson.M{"name": "microphones"})
	if err != nil {
		return wrapMongoErr(err, "list_collections", "microphones")
	}
	if len(names) > 0 {
		return nil
	}
	return wrapMongoErr(d.conn.Client().Database(d.statusDatabase).CreateCollection(ctx, "microphones"), "create_collection", "microphones")
}

func (d *DeviceStatus) state() string {
	if d.deviceConnected {
		return "Running"
	}
	return "Inactive"
}

// upsertDocument mirrors create_initial_device_document: insert if
// absent, otherwise patch the runtime fields only.
func (d *DeviceStatus) upsertDocument(ctx context.Context) error {
	existing := d.collection().FindOne(ctx, bson.M{"_id": d.deviceID})
	fields := bson.M{
		"serial_number":      d.serialNumber,
		"type":               d.info.Model,
		"firmware":           d.info.Firmware,
		"manufacturing_date": d.info.ManufacturingDate,
		"calibration_date":   d.info.CalibrationDate,
		"state":              d.state(),
		"battery":            bson.M{"current": nil, "charged": nil, "timeremaining": nil},
		"updated_parameters": bson.M{"AcousticSequences": nil, "SpectrumSequences": nil, "AudioSequences": nil},
		"last_updated":       time.Now(),
	}

	if existing.Err() == mongo.ErrNoDocuments {
		doc := bson.M{"_id": d.deviceID, "audio_trigger": 70}
		for k, v := range fields {
			doc[k] = v
		}
		_, err := d.collection().InsertOne(ctx, doc)
		return wrapMongoErr(err, "insert_one", "microphones")
	}

	_, err := d.collection().UpdateOne(ctx, bson.M{"_id": d.deviceID}, bson.M{"$set": fields})
	return wrapMongoErr(err, "update_one", "microphones")
}

// refreshStatus mirrors fetch_and_update_microphone_status /
// update_microphone_document: push the live state/temperature fields.
func (d *DeviceStatus) refreshStatus(ctx context.Context) error {
	fields := bson.M{
		"state":        d.state(),
		"temperature":  d.temperature,
		"last_updated": time.Now(),
	}
	_, err := d.collection().UpdateOne(ctx, bson.M{"_id": d.deviceID}, bson.M{"$set": fields})
	return wrapMongoErr(err, "update_one", "microphones")
}

// watchParameterChanges mirrors watch_document_for_parameters_change:
// react to a remote updated_parameters write by rewriting
// parameters.json, resetting updated_parameters, and invoking the
// restart callback — guarded against re-entrancy by
// onParametersChanged's caller (DeviceSupervisor already guards its
// own disconnect callback the same way).
func (d *DeviceStatus) watchParameterChanges(ctx context.Context) {
	pipeline := bson.A{bson.M{"$match": bson.M{
		"documentKey._id": d.deviceID,
		"operationType":   "update",
		"updateDescription.updatedFields.updated_parameters": bson.M{"$exists": true},
	}}}

	stream, err := d.collection().Watch(ctx, pipeline)
	if err != nil {
		d.log.Error("updated_parameters watch failed", "error", err)
		return
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var change struct {
			UpdateDescription struct {
				UpdatedFields struct {
					UpdatedParameters UpdatedParameters `bson:"updated_parameters"`
				} `bson:"updatedFields"`
			} `bson:"updateDescription"`
		}
		if err := stream.Decode(&change); err != nil {
			d.log.Warn("failed to decode updated_parameters change", "error", err)
			continue
		}
		params := change.UpdateDescription.UpdatedFields.UpdatedParameters
		if params.isEmpty() {
			continue
		}
		d.log.Info("remote parameter change detected", "params", params)
		if err := d.rewriteParametersFile(params); err != nil {
			d.log.Error("failed to rewrite parameters.json", "error", err)
			continue
		}
		if _, err := d.collection().UpdateOne(ctx, bson.M{"_id": d.deviceID}, bson.M{"$set": bson.M{
			"updated_parameters": bson.M{"AcousticSequences": nil, "SpectrumSequences": nil, "AudioSequences": nil},
		}}); err != nil {
			d.log.Error("failed to reset updated_parameters", "error", err)
		}
		if d.onParametersChanged != nil {
			d.onParametersChanged(ctx)
		}
	}
}

func (d *DeviceStatus) rewriteParametersFile(params UpdatedParameters) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return errors.New(err).Component("remotesync").Category(errors.CategoryFileParsing).Build()
	}
	if err := os.Remove(d.parametersPath); err != nil && !os.IsNotExist(err) {
		return errors.New(err).Component("remotesync").Category(errors.CategoryFileIO).Build()
	}
	if err := os.WriteFile(d.parametersPath, data, 0o644); err != nil {
		return errors.New(err).Component("remotesync").Category(errors.CategoryFileIO).Build()
	}
	return nil
}
