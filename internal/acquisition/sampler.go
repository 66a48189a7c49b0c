// Package acquisition implements AcousticSampler (spec component C3): a
// deadline-scheduled per-second sampler that emits one row per enabled
// parameter per whole second. Grounded on
// original_source/src/acquisition/acoustic_stream.py's AcousticStream.
package acquisition

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/robudan/acoustic-logger/internal/clock"
	"github.com/robudan/acoustic-logger/internal/errors"
	"github.com/robudan/acoustic-logger/internal/localstore"
	"github.com/robudan/acoustic-logger/internal/sensor"
)

// Sampler drives sensor reads at a fixed sub-second cadence and writes
// one row per enabled parameter per whole second to LocalStore.
type Sampler struct {
	driver sensor.Driver
	store  localstore.Store
	clock  *clock.Provider

	params         []string
	sampleInterval time.Duration
	perSecond      int

	log *slog.Logger
}

// New returns a Sampler. sampleInterval is tau (commonly 125ms, 8
// samples/s); params names the enabled base parameters (subset of
// LAF/LAFmin/LAFmax/LAeq and their C/Z-weighted equivalents).
func New(driver sensor.Driver, store localstore.Store, clk *clock.Provider, params []string, sampleInterval time.Duration, log *slog.Logger) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	perSecond := int(time.Second / sampleInterval)
	if perSecond < 1 {
		perSecond = 1
	}
	return &Sampler{
		driver:         driver,
		store:          store,
		clock:          clk,
		params:         params,
		sampleInterval: sampleInterval,
		perSecond:      perSecond,
		log:            log.With("service", "acquisition"),
	}
}

// Run aligns to the next whole second and then samples once per second
// until ctx is cancelled, per spec §4.3's state machine (Idle → Aligning
// → Sampling → Stopping).
func (s *Sampler) Run(ctx context.Context) error {
	for _, p := range s.params {
		if err := s.store.EnsureTable(p); err != nil {
			return errors.New(err).
				Component("acquisition").
				Category(errors.CategoryDatabase).
				Context("table", p).
				Build()
		}
	}

	s.clock.SleepToNextSecond(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	current := s.clock.Now().Truncate(time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.sampleOneSecond(ctx, current)
		current = current.Add(time.Second)

		// Suspend until the target second's deadline, regardless of how
		// long sampling took, so sᵢ never drifts from wall-clock time.
		delay := time.Until(current)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
		}
	}
}

func (s *Sampler) sampleOneSecond(ctx context.Context, second time.Time) {
	laf := make([]float64, 0, s.perSecond)
	leq := make([]float64, 0, s.perSecond)

	base := second
	for k := 0; k < s.perSecond; k++ {
		lafVal, err := s.driver.ReadInstantLevel(ctx)
		if err != nil {
			s.log.Error("sample read failed", "error", err, "reading", "instant")
		} else {
			laf = append(laf, lafVal)
		}

		leqVal, err := s.driver.ReadEnergySample(ctx)
		if err != nil {
			s.log.Error("sample read failed", "error", err, "reading", "energy")
		} else {
			leq = append(leq, leqVal)
		}

		target := base.Add(time.Duration(k+1) * s.sampleInterval)
		delay := time.Until(target)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}

	if len(laf) < s.perSecond || len(leq) < s.perSecond {
		s.log.Warn("incomplete sample set, skipping second", "second", second, "laf_count", len(laf), "leq_count", len(leq))
		return
	}

	for _, param := range s.params {
		value, ok := computeParam(param, laf, leq)
		if !ok {
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			s.log.Warn("rejecting non-finite sample", "param", param, "value", value)
			continue
		}
		if err := s.store.Insert(param, second, roundTo2(value)); err != nil {
			s.log.Error("insert failed", "param", param, "error", err)
		}
	}
}

func computeParam(param string, laf, leq []float64) (float64, bool) {
	switch param {
	case "LAF", "LCF", "LZF":
		return laf[0], true
	case "LAFmin", "LCFmin", "LZFmin":
		return minOf(laf), true
	case "LAFmax", "LCFmax", "LZFmax":
		return maxOf(laf), true
	case "LAeq", "LCeq", "LZeq":
		return energyMeanDB(leq), true
	default:
		return 0, false
	}
}

func energyMeanDB(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += math.Pow(10, v/10)
	}
	return 10 * math.Log10(sum/float64(len(values)))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
