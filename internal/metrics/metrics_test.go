package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryMethodsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveSampleInterval(time.Second)
		r.IncSamplerError("timeout")
		r.ObserveAggregationLatency("1min", time.Millisecond)
		r.SetSyncQueueDepth("laeq1min", 3)
		r.IncSyncUploadError("tabular")
		r.SetDeviceConnected(true)
		r.IncDeviceStallReset()
		r.SetBuildInfo("v0.1.0", "abc123")
	})
}

func TestRegistryRecordsObservations(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	assert.NotPanics(t, func() {
		r.ObserveSampleInterval(time.Second)
		r.IncSamplerError("timeout")
		r.ObserveAggregationLatency("1min", 10*time.Millisecond)
		r.SetSyncQueueDepth("laeq1min", 7)
		r.IncSyncUploadError("audio")
		r.SetDeviceConnected(false)
		r.IncDeviceStallReset()
		r.SetBuildInfo("v0.1.0", "abc123")
	})
}

func TestServerShutsDownOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Server binds :0 so an external request against srv.listen isn't
	// meaningful here; this test only exercises the shutdown path.
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestMetricsHandlerType(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	assert.IsType(t, &http.ServeMux{}, srv.srv.Handler)
}
