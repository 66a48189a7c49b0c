// Package app wires the full acoustic-logger pipeline together: config
// load, store open, sensor acquisition, audio capture, scheduled
// aggregation, remote sync, device supervision, metrics, and retention
// purge, started and stopped as one unit. Grounded on the
// config-load/store-open/background-services/signal-shutdown ordering
// spec §4.12 names and on cmd/realtime's top-level wiring style in the
// teacher repo (internal/analysis.RealtimeAnalysis plays the same
// coordinating role there).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robudan/acoustic-logger/internal/acquisition"
	"github.com/robudan/acoustic-logger/internal/aggregation"
	"github.com/robudan/acoustic-logger/internal/audiorec"
	"github.com/robudan/acoustic-logger/internal/buildinfo"
	"github.com/robudan/acoustic-logger/internal/clock"
	"github.com/robudan/acoustic-logger/internal/conf"
	"github.com/robudan/acoustic-logger/internal/diskmanager"
	"github.com/robudan/acoustic-logger/internal/errors"
	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/logging"
	"github.com/robudan/acoustic-logger/internal/metrics"
	"github.com/robudan/acoustic-logger/internal/remotesync"
	"github.com/robudan/acoustic-logger/internal/schedule"
	"github.com/robudan/acoustic-logger/internal/sensor"
	"github.com/robudan/acoustic-logger/internal/supervisor"
)

// storeOpenMaxAttempts and storeOpenBaseBackoff bound the local-store
// open retry for transient startup failures (a MySQL backend may still be
// starting up when the logger process starts under the same init
// system): attempt n waits n*storeOpenBaseBackoff before the next try.
const (
	storeOpenMaxAttempts = 5
	storeOpenBaseBackoff = 2 * time.Second
)

// App owns every long-running component's lifecycle. Construct with New,
// then call Run once; Run blocks until ctx is cancelled (normally by a
// signal.NotifyContext in cmd/run) and returns after the retention,
// remote-sync, supervisor and metrics Run calls have returned.
//
// The sensor-dependent components (AcousticSampler, AudioRecorder,
// IntervalScheduler + aggregators) are NOT started at construction time:
// per spec §4.11/§4.12, DeviceSupervisor gates them on device presence.
// They are built and started fresh in onDeviceConnect and torn down in
// onDeviceDisconnect, via devicePipeline.
type App struct {
	settings *conf.Settings
	log      *slog.Logger
	metrics  *metrics.Registry

	store  localstore.Store
	clk    *clock.Provider
	params []string

	retention  *diskmanager.Manager
	sync       *remotesync.Sync
	supervisor *supervisor.Supervisor
	metricsSrv *metrics.Server

	pipelineMu sync.Mutex
	pipeline   *devicePipeline
}

// devicePipeline is the set of sensor-dependent components running for
// one connect/disconnect cycle.
type devicePipeline struct {
	driver sensor.Driver
	cancel context.CancelFunc
	done   chan struct{}
}

// New loads configuration, initializes logging, opens the local store
// with retry, and wires every component. It does not start any
// goroutines; call Run for that.
func New() (*App, error) {
	settings, err := conf.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init()
	log := logging.ForService("app")

	store, err := openStoreWithRetry(settings, log)
	if err != nil {
		return nil, err
	}

	clk, err := clock.New(settings.Location.TimeZone)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing clock: %w", err)
	}

	var reg *metrics.Registry
	var metricsSrv *metrics.Server
	if settings.Metrics.Enabled {
		reg = metrics.New()
		reg.SetBuildInfo(buildinfo.Default().Version(), buildinfo.Default().SystemID())
		metricsSrv = metrics.NewServer(settings.Metrics.Listen, logging.ForService("metrics"))
	}

	params, err := conf.LoadParameters(conf.ParametersFileName)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading %s: %w", conf.ParametersFileName, err)
	}

	retention := diskmanager.NewManager(store, settings.Retention.Days, 24*time.Hour, logging.ForService("retention"))

	a := &App{
		settings:   settings,
		log:        log,
		metrics:    reg,
		store:      store,
		clk:        clk,
		params:     params.AcousticSequences,
		retention:  retention,
		metricsSrv: metricsSrv,
	}

	a.sync = remotesync.New(remotesync.Config{
		MongoURL:       settings.Remote.URL,
		Database:       settings.Device.SerialNumber,
		DeviceStatusDB: settings.Remote.DeviceStatusDB,
		DeviceID:       settings.Device.SerialNumber,
		SerialNumber:   settings.Device.SerialNumber,
		AudioDir:       settings.Audio.FinalDir,
		ParametersPath: conf.ParametersFileName,
		Workers:        settings.Remote.Workers,
	}, store, a.onParametersChanged, logging.ForService("remotesync"))

	a.supervisor = supervisor.New(supervisor.Config{
		ByIDDir:     settings.Device.ByIDDir,
		Keywords:    settings.Device.Keywords,
		AudioDir:    settings.Audio.FinalDir,
		StallWindow: settings.Audio.WatchdogAfter,
	}, supervisor.Callbacks{
		Connect:    a.onDeviceConnect,
		Disconnect: a.onDeviceDisconnect,
	}, logging.ForService("supervisor"))

	return a, nil
}

func openStoreWithRetry(settings *conf.Settings, log *slog.Logger) (localstore.Store, error) {
	var lastErr error
	for attempt := 1; attempt <= storeOpenMaxAttempts; attempt++ {
		store, err := localstore.Open(settings)
		if err == nil {
			return store, nil
		}
		lastErr = err
		log.Warn("local store open failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(storeOpenBaseBackoff * time.Duration(attempt))
	}
	return nil, errors.New(lastErr).
		Component("app").
		Category(errors.CategoryDatabase).
		Context("attempts", storeOpenMaxAttempts).
		Build()
}

// onDeviceConnect opens the sensor, builds a fresh AcousticSampler,
// AudioRecorder and IntervalScheduler+aggregators against it, and starts
// them under a child context owned by the returned devicePipeline. This
// is C11's gate on C3/C4/C6: spec §4.11/§4.12 require the acquisition
// pipeline to exist only while a device is actually present, not run
// permanently against sensor.NewFake() if none ever enumerates.
//
// ctx is Run's top-level context; the pipeline's own context is derived
// from it so a process shutdown also tears the pipeline down.
func (a *App) onDeviceConnect(ctx context.Context, model sensor.Model, path string) {
	a.log.Info("sensor device connected", "model", model, "path", path)

	if params, err := conf.LoadParameters(conf.ParametersFileName); err != nil {
		a.log.Warn("failed to reload parameters file, keeping previous parameters", "error", err)
	} else {
		a.params = params.AcousticSequences
	}

	driver, err := sensor.Open(model, path)
	if err != nil {
		a.log.Error("failed to open connected sensor device, acquisition pipeline stays down until next reconnect", "model", model, "path", path, "error", err)
		return
	}

	pipelineCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	pipeline := &devicePipeline{driver: driver, cancel: cancel, done: done}

	sampler := acquisition.New(
		driver,
		a.store,
		a.clk,
		a.params,
		time.Duration(a.settings.Acquisition.SampleInterval*float64(time.Second)),
		logging.ForService("acquisition"),
	)

	var recorder *audiorec.Recorder
	if a.settings.Audio.Enabled {
		source, err := audiorec.NewMalgoSource(a.settings.Acquisition.FrameRate)
		if err != nil {
			a.log.Warn("audio capture device unavailable, audio recording disabled for this connection", "error", err)
		} else {
			recorder, err = audiorec.New(audiorec.Config{
				SampleRate:   a.settings.Acquisition.FrameRate,
				StagingDir:   a.settings.Audio.StagingDir,
				FinalDir:     a.settings.Audio.FinalDir,
				FinalFormat:  a.settings.Audio.FinalFormat,
				FinalBitrate: a.settings.Audio.FinalBitrate,
			}, a.clk, source, logging.ForService("audiorec"))
			if err != nil {
				a.log.Warn("failed to construct audio recorder", "error", err)
				recorder = nil
			}
		}
	}

	scheduler := schedule.New(a.clk, logging.ForService("schedule"))
	aggregation.Build(a.params, a.store, logging.ForService("aggregation"), scheduler)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sampler.Run(pipelineCtx); err != nil && pipelineCtx.Err() == nil {
			a.log.Error("acquisition sampler stopped unexpectedly", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(pipelineCtx)
	}()
	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(pipelineCtx); err != nil && pipelineCtx.Err() == nil {
				a.log.Error("audio recorder stopped unexpectedly", "error", err)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	a.pipelineMu.Lock()
	a.pipeline = pipeline
	a.pipelineMu.Unlock()

	a.metrics.SetDeviceConnected(true)
	a.recordConnectivityEvent(ctx, 1)
	a.sync.Status.SetDeviceInfo(remotesync.DeviceInfo{Model: string(model)})
}

// onDeviceDisconnect is invoked both for device loss and for the daily
// scheduled reset; it is already re-entrancy-guarded by Supervisor. It
// stops the audio watchdog implicitly by cancelling the recorder's
// context, cancels the sampler, stops the aggregation scheduler, and
// waits for all three to exit before closing the driver, per spec
// §4.12's disconnect-callback ordering. The next onDeviceConnect
// restarts the pipeline in the same order.
func (a *App) onDeviceDisconnect(ctx context.Context) {
	a.log.Info("sensor device disconnected or reset")

	a.pipelineMu.Lock()
	pipeline := a.pipeline
	a.pipeline = nil
	a.pipelineMu.Unlock()

	if pipeline != nil {
		pipeline.cancel()
		<-pipeline.done
		if err := pipeline.driver.Close(); err != nil {
			a.log.Warn("failed to close sensor device", "error", err)
		}
	}

	a.metrics.SetDeviceConnected(false)
	a.metrics.IncDeviceStallReset()
	a.recordConnectivityEvent(ctx, 0)
	a.sync.Status.ClearDeviceInfo()
}

// onParametersChanged is invoked by remotesync.DeviceStatus after it has
// rewritten parameters.json for a remote parameter change. It only logs:
// the running pipeline is not restarted here, and the new parameters take
// effect the next time onDeviceConnect builds the pipeline (after a device
// reconnect, a stall-watchdog trip or a scheduled reset).
func (a *App) onParametersChanged(ctx context.Context) {
	a.log.Warn("remote parameter change detected, acquisition pipeline requires restart to apply")
}

func (a *App) recordConnectivityEvent(ctx context.Context, value float64) {
	if err := a.store.EnsureTable("connectivity"); err != nil {
		a.log.Error("failed to ensure connectivity table", "error", err)
		return
	}
	if err := a.store.Insert("connectivity", a.clk.Now(), value); err != nil {
		a.log.Error("failed to record connectivity event", "error", err)
	}
}

// Run starts every always-on background component and blocks until ctx
// is cancelled, then tears down any running device pipeline and stops
// the local store. The sensor-dependent components (acquisition,
// recording, scheduling/aggregation) are not started here: Supervisor's
// presence loop drives them into existence via onDeviceConnect once a
// device is found, per spec §4.11/§4.12.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.onDeviceDisconnect(context.Background())

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); a.retention.Run(ctx) }()
	go func() { defer wg.Done(); a.sync.Run(ctx) }()
	go func() { defer wg.Done(); a.supervisor.Run(ctx) }()

	if a.metricsSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.metricsSrv.Run(ctx); err != nil {
				a.log.Error("metrics server stopped unexpectedly", "error", err)
			}
		}()
	}

	a.log.Info("acoustic logger started", "serial", a.settings.Device.SerialNumber)
	<-ctx.Done()
	a.log.Info("acoustic logger shutting down")
	wg.Wait()
	return nil
}
