// Package sensor implements the SensorDriver capability abstraction (spec
// component C2) and its concrete device backends.
package sensor

import (
	"context"
	"time"
)

// Driver is the capability set a sound-level meter must expose. Calls may
// block on device I/O; callers (AcousticSampler) isolate them on a
// worker goroutine rather than an event loop, per spec §5.
type Driver interface {
	// ReadInstantLevel returns the current instantaneous (fast) dB level.
	ReadInstantLevel(ctx context.Context) (float64, error)
	// ReadEnergySample returns the current energy-averaged dB level used
	// to compute LAeq.
	ReadEnergySample(ctx context.Context) (float64, error)
	// ReadTemperature returns the device's internal temperature in
	// Celsius, if supported.
	ReadTemperature(ctx context.Context) (float64, bool, error)

	ReadModel(ctx context.Context) (string, error)
	ReadFirmware(ctx context.Context) (string, error)
	ReadManufacturingDate(ctx context.Context) (time.Time, error)
	ReadCalibrationDate(ctx context.Context) (time.Time, error)

	WriteTau(ctx context.Context, seconds float64) error
	WriteFs(ctx context.Context, hz int) error

	ReadWeighting(ctx context.Context) (string, error)
	WriteWeighting(ctx context.Context, weighting string) error

	Close() error
}

// Model identifies which concrete driver backs a device path.
type Model string

const (
	ModelMk3 Model = "mk3"
	ModelMk4 Model = "mk4"
)
