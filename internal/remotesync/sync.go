package remotesync

import (
	"context"
	"log/slog"

	"github.com/robudan/acoustic-logger/internal/localstore"
)

// Config carries RemoteSync's tunables, sourced from conf.Settings.Remote
// and the sibling Device/Audio settings it needs to locate local state.
type Config struct {
	MongoURL       string
	Database       string // per-device tabular database, keyed by serial number
	DeviceStatusDB string
	DeviceID       string
	SerialNumber   string
	AudioDir       string
	ParametersPath string
	Workers        int
}

// Sync is the top-level RemoteSync orchestrator (spec component C10): it
// owns the shared connection and runs the tabular loop, audio loop, and
// device-status heartbeat concurrently. Grounded on data_sync_manager.py's
// DataSyncManager, which fans the same three responsibilities out from a
// single connection-ready gate.
type Sync struct {
	cfg  Config
	conn *Connection

	Tabular *TabularSync
	Audio   *AudioSync
	Status  *DeviceStatus

	log *slog.Logger
}

// New wires the connection and its three dependent loops.
// onParametersChanged is invoked after the remote device document
// requests a parameter change and parameters.json has been rewritten.
func New(cfg Config, store localstore.Store, onParametersChanged func(ctx context.Context), log *slog.Logger) *Sync {
	if log == nil {
		log = slog.Default()
	}
	conn := NewConnection(cfg.MongoURL, log)
	return &Sync{
		cfg:     cfg,
		conn:    conn,
		Tabular: NewTabularSync(store, conn, cfg.Database, cfg.Workers, log),
		Audio:   NewAudioSync(cfg.AudioDir, store, conn, cfg.Database, cfg.DeviceStatusDB, cfg.DeviceID, log),
		Status:  NewDeviceStatus(conn, cfg.DeviceStatusDB, cfg.DeviceID, cfg.SerialNumber, cfg.ParametersPath, onParametersChanged, log),
		log:     log.With("service", "remotesync"),
	}
}

// Run starts the connection lifecycle and all three loops, returning
// once ctx is cancelled. RemoteSync never blocks application startup
// (spec §4.12): callers run it in a background goroutine.
func (s *Sync) Run(ctx context.Context) {
	go s.conn.Run(ctx)

	done := make(chan struct{}, 3)
	go func() { defer func() { done <- struct{}{} }(); _ = s.Tabular.Run(ctx) }()
	go func() { defer func() { done <- struct{}{} }(); _ = s.Audio.Run(ctx) }()
	go func() { defer func() { done <- struct{}{} }(); _ = s.Status.Run(ctx) }()

	<-ctx.Done()
	<-done
	<-done
	<-done
}
