// Package clock provides the timezone-aware wall-clock source shared by
// the acquisition, audio and aggregation pipelines.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Provider is the zoned clock described by spec component C1: a fixed
// location loaded once at startup, an acquisition-aligned start instant,
// and a sleep-to-next-second helper used by AcousticSampler to keep its
// loop phase-locked to wall-clock seconds.
// Grounded on original_source's TimestampProvider.
type Provider struct {
	loc *time.Location

	mu    sync.Mutex
	start time.Time
}

// New loads the named IANA zone and returns a Provider. An empty or
// "Local" name uses the process-local zone, matching the embedded
// config.yaml default.
func New(zoneName string) (*Provider, error) {
	if zoneName == "" || zoneName == "Local" {
		return &Provider{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("clock: loading zone %q: %w", zoneName, err)
	}
	return &Provider{loc: loc}, nil
}

// Now returns the current time in the provider's zone.
func (p *Provider) Now() time.Time {
	return time.Now().In(p.loc)
}

// StartInstant marks (once) the acquisition-aligned start timestamp,
// truncated to the second, and returns it. Subsequent calls return the
// same value until Reset is called.
func (p *Provider) StartInstant() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		p.start = p.Now().Truncate(time.Second)
	}
	return p.start
}

// Reset clears the recorded start instant, allowing the next call to
// StartInstant to re-align. Used when the acquisition pipeline restarts
// after a device-loss recovery.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Time{}
}

// SleepToNextSecond blocks until the next whole second boundary in the
// provider's zone, or until ctx is cancelled, and returns the planned delay
// to that boundary (the full delay even when ctx cuts the sleep short).
// Grounded on get_next_second_sleep_time.
func (p *Provider) SleepToNextSecond(ctx context.Context) time.Duration {
	now := p.Now()
	delay := time.Second - now.Sub(now.Truncate(time.Second))
	if delay <= 0 || delay > time.Second {
		delay = time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return delay
}
