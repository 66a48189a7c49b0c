package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSubscriber struct {
	mu    sync.Mutex
	calls []Interval
	wg    *sync.WaitGroup
}

func (r *recordingSubscriber) OnInterval(ctx context.Context, interval Interval, start, end time.Time) {
	r.mu.Lock()
	r.calls = append(r.calls, interval)
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
}

func TestIntervalFiresOnBoundary(t *testing.T) {
	assert.True(t, Interval1Min.fires(time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)))
	assert.False(t, Interval1Min.fires(time.Date(2026, 1, 1, 10, 5, 1, 0, time.UTC)))

	assert.True(t, Interval5Min.fires(time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)))
	assert.False(t, Interval5Min.fires(time.Date(2026, 1, 1, 10, 6, 0, 0, time.UTC)))

	assert.True(t, Interval24Hr.fires(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Interval24Hr.fires(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)))
}

func TestTickFansOutToSubscribers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	sub := &recordingSubscriber{wg: &wg}

	s := New(nil, nil)
	s.Subscribe(Interval1Min, sub)

	s.tick(context.Background(), time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC))
	wg.Wait()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, []Interval{Interval1Min}, sub.calls)
}

func TestPanicInSubscriberIsIsolated(t *testing.T) {
	s := New(nil, nil)
	s.Subscribe(Interval1Min, panicSubscriber{})

	assert.NotPanics(t, func() {
		s.invoke(context.Background(), panicSubscriber{}, Interval1Min, time.Time{}, time.Time{})
	})
}

type panicSubscriber struct{}

func (panicSubscriber) OnInterval(ctx context.Context, interval Interval, start, end time.Time) {
	panic("boom")
}
