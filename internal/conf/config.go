// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the immutable configuration value built once at startup by
// Load and threaded explicitly into every component constructor. There is
// no global mutable config object; Setting() exposes the last value built
// by Load purely for packages (like logging) that are initialized before
// the rest of the dependency graph is wired.
type Settings struct {
	Debug bool // true to enable debug-level logging

	Main struct {
		Name string // node name, used to identify this logger instance
		Log  LogConfig
	}

	Location struct {
		Latitude  float64
		Longitude float64
		TimeZone  string // IANA zone name, e.g. "Europe/Bucharest"
	}

	Device struct {
		SerialNumber string // required, identifies this logger to the remote store
		ByIDDir      string // platform sensor-device symlink directory, e.g. /dev/serial/by-id
		Keywords     []string
	}

	Acquisition struct {
		SampleInterval float64 // tau, seconds between acoustic samples (default 0.125)
		FrameRate      int     // fs, audio capture sample rate (default 48000)
		Weighting      string  // "A", "C" or "Z", derived from AcousticSequences
	}

	Audio struct {
		Enabled       bool
		StagingDir    string // where in-progress minute WAV files are written
		FinalDir      string // where transcoded minute files are moved
		FinalFormat   string // "mp3" or other ffmpeg-supported format
		FinalBitrate  string // e.g. "256k"
		WatchdogAfter time.Duration
	}

	LocalStore struct {
		Driver   string // "mysql" or "sqlite"
		Host     string
		Port     string
		Username string
		Password string
		Database string
		Path     string // sqlite file path, used when Driver == "sqlite"
	}

	Retention struct {
		Days int
	}

	Remote struct {
		URL              string // mongodb connection URL
		Username         string
		Password         string
		DeviceStatusDB   string // shared device-status database name
		PollInterval     time.Duration
		DiscoverInterval time.Duration
		Workers          int
		TTLDays          int
	}

	Metrics struct {
		Enabled bool
		Listen  string
	}
}

// LogConfig defines the configuration for a log file.
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // path to the log file
	Rotation    RotationType // type of log rotation
	MaxSize     int64        // max size in bytes for RotationSize
	RotationDay time.Weekday // day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads config.yaml defaults, overlays required environment variables
// and the parameters.json file, validates the result, and returns the
// immutable Settings value. It does not depend on any package-level
// mutable state beyond the last-loaded cache exposed by Setting().
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaultsFile, err := configFiles.Open("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error opening embedded config.yaml: %w", err)
	}
	defer defaultsFile.Close()

	if err := v.ReadConfig(defaultsFile); err != nil {
		return nil, fmt.Errorf("error reading embedded config.yaml: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := applyEnvOverlay(settings); err != nil {
		return nil, fmt.Errorf("error applying environment overlay: %w", err)
	}

	params, err := LoadParameters(ParametersFileName)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", ParametersFileName, err)
	}
	weighting, err := params.ExtractWeighting()
	if err != nil {
		return nil, fmt.Errorf("error validating acoustic sequences: %w", err)
	}
	settings.Acquisition.Weighting = weighting
	settings.Audio.Enabled = len(params.AudioSequences) > 0

	if err := Validate(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// Setting returns the most recently loaded Settings, or a zero-value
// Settings if Load has not yet been called. It exists so early-initialized
// packages (logging) can read rotation defaults without a constructor
// parameter; all other packages should take *Settings explicitly.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		return &Settings{}
	}
	return settingsInstance
}
