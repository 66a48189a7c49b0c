package sensor

import (
	"context"
	"math"
	"sync"
	"time"
)

// Fake is an in-memory synthetic SensorDriver used by unit tests, grounded
// on the teacher's convention of providing fake/mock implementations
// behind a production interface (datastore/mocks, myaudio test helpers).
type Fake struct {
	mu         sync.Mutex
	InstantDB  float64
	EnergyDB   float64
	Temp       float64
	HasTemp    bool
	Weighting  string
	Tau        float64
	Fs         int
	FailReads  bool
	ModelName  string
	FirmwareID string
}

// NewFake returns a Fake with plausible defaults.
func NewFake() *Fake {
	return &Fake{
		InstantDB:  50.0,
		EnergyDB:   50.0,
		Temp:       20.0,
		HasTemp:    true,
		Weighting:  "A",
		Tau:        0.125,
		Fs:         48000,
		ModelName:  "fake-mk4",
		FirmwareID: "0.0.0-fake",
	}
}

func (f *Fake) ReadInstantLevel(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailReads {
		return 0, ctx.Err()
	}
	return f.InstantDB, nil
}

func (f *Fake) ReadEnergySample(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailReads {
		return 0, ctx.Err()
	}
	return f.EnergyDB, nil
}

func (f *Fake) ReadTemperature(ctx context.Context) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Temp, f.HasTemp, nil
}

func (f *Fake) ReadModel(ctx context.Context) (string, error)    { return f.ModelName, nil }
func (f *Fake) ReadFirmware(ctx context.Context) (string, error) { return f.FirmwareID, nil }

func (f *Fake) ReadManufacturingDate(ctx context.Context) (time.Time, error) {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (f *Fake) ReadCalibrationDate(ctx context.Context) (time.Time, error) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (f *Fake) WriteTau(ctx context.Context, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tau = seconds
	return nil
}

func (f *Fake) WriteFs(ctx context.Context, hz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fs = hz
	return nil
}

func (f *Fake) ReadWeighting(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Weighting, nil
}

func (f *Fake) WriteWeighting(ctx context.Context, weighting string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Weighting = weighting
	return nil
}

func (f *Fake) Close() error { return nil }

// SetNaN forces the next instant-level read to be non-finite, used to
// exercise the sampler's non-finite rejection path.
func (f *Fake) SetNaN() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InstantDB = math.NaN()
	f.EnergyDB = math.NaN()
}

var _ Driver = (*Fake)(nil)
