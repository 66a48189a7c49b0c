// Package supervisor implements DeviceSupervisor (spec component C11):
// presence detection for the sensor, an audio-output stall watchdog, and
// two scheduled daily resets, all driving a single disconnect callback
// that gates the rest of the pipeline. Grounded on
// original_source/src/monitoring/audio_stall_detector.py (scan interval,
// stall-scan counting, callback re-entrancy guard) and spec §4.11's
// presence-loop description.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robudan/acoustic-logger/internal/sensor"
)

// Config carries the Supervisor's tunables, sourced from conf.Settings.Device.
type Config struct {
	// FixedDevicePath is used verbatim on platforms where the device
	// enumerates at a stable path (spec §4.11: "on one OS, a fixed
	// name"). Empty means use ByIDDir/Keywords instead.
	FixedDevicePath string
	ByIDDir         string
	Keywords        []string

	AudioDir string // scanned by the stall watchdog for "*.mp3"

	PresenceInterval time.Duration // default 2s
	StallInterval    time.Duration // default 5s
	StallWindow      time.Duration // default 3min

	// ResetTimes are local times of day (hour, min, sec) at which the
	// disconnect callback fires unconditionally. Spec default: 02:00:03
	// and 13:00:03.
	ResetTimes []ClockTime
}

// ClockTime is a local time-of-day, with no date component.
type ClockTime struct {
	Hour, Min, Sec int
}

// DefaultResetTimes returns the spec's two daily reset times.
func DefaultResetTimes() []ClockTime {
	return []ClockTime{{Hour: 2, Min: 0, Sec: 3}, {Hour: 13, Min: 0, Sec: 3}}
}

// Callbacks are invoked by Supervisor on device state transitions. Connect
// and Disconnect must not block for long; the caller is expected to
// offload any slow setup/teardown.
type Callbacks struct {
	// Connect is invoked once per "not found → found" transition, with
	// the resolved model and device path.
	Connect func(ctx context.Context, model sensor.Model, path string)
	// Disconnect is invoked on device loss, on a stall-watchdog trip, or
	// on a scheduled reset. Re-entrancy is guarded by Supervisor itself.
	Disconnect func(ctx context.Context)
}

// Supervisor runs the presence loop, stall watchdog, and scheduled resets
// as independent goroutines under a shared context.
type Supervisor struct {
	cfg Config
	cb  Callbacks
	log *slog.Logger

	connected          atomic.Bool
	callbackInProgress atomic.Bool

	currentPath string
}

// New returns a Supervisor. Zero-valued interval/window fields in cfg are
// replaced with the spec defaults.
func New(cfg Config, cb Callbacks, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PresenceInterval <= 0 {
		cfg.PresenceInterval = 2 * time.Second
	}
	if cfg.StallInterval <= 0 {
		cfg.StallInterval = 5 * time.Second
	}
	if cfg.StallWindow <= 0 {
		cfg.StallWindow = 3 * time.Minute
	}
	if len(cfg.ResetTimes) == 0 {
		cfg.ResetTimes = DefaultResetTimes()
	}
	return &Supervisor{cfg: cfg, cb: cb, log: log.With("service", "supervisor")}
}

// Run starts the presence loop, stall watchdog, and scheduled-reset
// tickers, blocking until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	go s.presenceLoop(ctx)
	go s.stallWatchdog(ctx)
	go s.resetLoop(ctx)
	<-ctx.Done()
}

func (s *Supervisor) presenceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PresenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			model, path, found := s.resolveDevice()
			wasConnected := s.connected.Load()

			switch {
			case found && !wasConnected:
				s.connected.Store(true)
				s.currentPath = path
				s.log.Info("device connected", "model", model, "path", path)
				if s.cb.Connect != nil {
					s.cb.Connect(ctx, model, path)
				}
			case !found && wasConnected:
				s.connected.Store(false)
				s.log.Warn("device disconnected", "path", s.currentPath)
				s.triggerDisconnect(ctx, "device-loss")
			}
		}
	}
}

// resolveDevice applies the platform-specific rule from spec §4.11: a
// fixed path on one OS, otherwise a by-id directory scan.
func (s *Supervisor) resolveDevice() (sensor.Model, string, bool) {
	if s.cfg.FixedDevicePath != "" && runtime.GOOS == "windows" {
		if _, err := os.Stat(s.cfg.FixedDevicePath); err != nil {
			return "", "", false
		}
		return sensor.ModelMk4, s.cfg.FixedDevicePath, true
	}
	model, path, err := sensor.Probe(s.cfg.ByIDDir, s.cfg.Keywords)
	if err != nil {
		return "", "", false
	}
	return model, path, true
}

func (s *Supervisor) stallWatchdog(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StallInterval)
	defer ticker.Stop()

	var lastSeen time.Time
	var stallScans int
	maxStallScans := int(s.cfg.StallWindow / s.cfg.StallInterval)
	if maxStallScans < 1 {
		maxStallScans = 1
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latest, ok := latestAudioTimestamp(s.cfg.AudioDir)
			switch {
			case ok && latest.After(lastSeen):
				lastSeen = latest
				stallScans = 0
			default:
				stallScans++
				s.log.Debug("no new audio file", "stall_scans", stallScans)
			}

			if stallScans >= maxStallScans {
				s.log.Warn("audio stall detected, triggering disconnect", "stall_scans", stallScans)
				s.triggerDisconnect(ctx, "audio-stall")
				stallScans = 0
			}
		}
	}
}

// latestAudioTimestamp scans dir for "*.mp3" files named per audiorec's
// minute-aligned convention and returns the newest embedded timestamp.
func latestAudioTimestamp(dir string) (time.Time, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, false
	}

	var latest time.Time
	var found bool
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".mp3") {
			continue
		}
		stamp := strings.TrimSuffix(name, ".mp3")
		ts, err := time.ParseInLocation("2006-01-02 15-04-00", stamp, time.Local)
		if err != nil {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	return latest, found
}

func (s *Supervisor) resetLoop(ctx context.Context) {
	for _, ct := range s.cfg.ResetTimes {
		go s.runDailyReset(ctx, ct)
	}
	<-ctx.Done()
}

func (s *Supervisor) runDailyReset(ctx context.Context, ct ClockTime) {
	for {
		wait := time.Until(nextOccurrence(time.Now(), ct))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		s.log.Info("scheduled reset firing", "hour", ct.Hour, "min", ct.Min, "sec", ct.Sec)
		s.triggerDisconnect(ctx, "scheduled-reset")
	}
}

// nextOccurrence returns the next local wall-clock instant matching ct,
// today if it hasn't passed yet, tomorrow otherwise.
func nextOccurrence(from time.Time, ct ClockTime) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), ct.Hour, ct.Min, ct.Sec, 0, from.Location())
	if !candidate.After(from) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

// triggerDisconnect invokes the disconnect callback unless one is already
// in progress, mirroring the original's callback_in_progress guard.
func (s *Supervisor) triggerDisconnect(ctx context.Context, reason string) {
	if !s.callbackInProgress.CompareAndSwap(false, true) {
		s.log.Debug("disconnect callback already in progress, skipping", "reason", reason)
		return
	}
	defer s.callbackInProgress.Store(false)

	if s.cb.Disconnect != nil {
		s.cb.Disconnect(ctx)
	}
	// Clear presence so that a device still enumerated after a stall or
	// scheduled reset is reported as a fresh connect on the next tick.
	s.connected.Store(false)
}
