// Package schedule implements IntervalScheduler (spec component C6): a
// per-second wall-clock tick that fires named interval boundaries out to
// independently-scheduled subscribers. Grounded on
// original_source/src/aggregation/time_manager.py's TimeManager.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robudan/acoustic-logger/internal/clock"
)

// Interval names the fixed rollup boundaries the scheduler fires on.
type Interval string

const (
	Interval1Min  Interval = "1min"
	Interval5Min  Interval = "5min"
	Interval15Min Interval = "15min"
	Interval30Min Interval = "30min"
	Interval1Hour Interval = "1h"
	Interval24Hr  Interval = "24h"
)

var allIntervals = []Interval{Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval1Hour, Interval24Hr}

func (i Interval) length() time.Duration {
	switch i {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval15Min:
		return 15 * time.Minute
	case Interval30Min:
		return 30 * time.Minute
	case Interval1Hour:
		return time.Hour
	case Interval24Hr:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (i Interval) fires(t time.Time) bool {
	switch i {
	case Interval1Min:
		return t.Second() == 0
	case Interval5Min:
		return t.Second() == 0 && t.Minute()%5 == 0
	case Interval15Min:
		return t.Second() == 0 && t.Minute()%15 == 0
	case Interval30Min:
		return t.Second() == 0 && t.Minute()%30 == 0
	case Interval1Hour:
		return t.Second() == 0 && t.Minute() == 0
	case Interval24Hr:
		return t.Second() == 0 && t.Minute() == 0 && t.Hour() == 0
	default:
		return false
	}
}

// Subscriber receives interval boundary notifications. OnInterval must
// not block the scheduler's own tick; the scheduler invokes it in its own
// goroutine, matching original_source's per-subscriber try/except
// isolation and spec §4.6's "no backlog" requirement.
type Subscriber interface {
	OnInterval(ctx context.Context, interval Interval, start, end time.Time)
}

// Scheduler fires subscribers on 1m/5m/15m/30m/1h/24h wall-clock
// boundaries.
type Scheduler struct {
	clock *clock.Provider
	log   *slog.Logger

	mu   sync.Mutex
	subs map[Interval][]Subscriber
}

// New returns a Scheduler driven by clk.
func New(clk *clock.Provider, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		clock: clk,
		log:   log,
		subs:  make(map[Interval][]Subscriber),
	}
}

// Subscribe registers sub to be notified on every boundary of interval.
func (s *Scheduler) Subscribe(interval Interval, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[interval] = append(s.subs[interval], sub)
}

// Run ticks once per second until ctx is cancelled, firing every interval
// that boundaries at the current second. A missed tick (e.g. a paused
// process) is skipped, never replayed, per spec §4.6.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.clock.Now().Truncate(time.Second))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, end time.Time) {
	for _, interval := range allIntervals {
		if !interval.fires(end) {
			continue
		}
		start := end.Add(-interval.length())

		s.mu.Lock()
		subs := append([]Subscriber(nil), s.subs[interval]...)
		s.mu.Unlock()

		for _, sub := range subs {
			go s.invoke(ctx, sub, interval, start, end)
		}
	}
}

func (s *Scheduler) invoke(ctx context.Context, sub Subscriber, interval Interval, start, end time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("interval subscriber panicked", "interval", interval, "panic", r)
		}
	}()
	sub.OnInterval(ctx, interval, start, end)
}
