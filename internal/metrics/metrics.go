// Package metrics exposes Prometheus instrumentation for the acquisition,
// aggregation, and remote-sync pipeline stages, served on an internal
// HTTP endpoint for scraping. Grounded on the registration/update split in
// madpsy-ka9q_ubersdr's PrometheusMetrics (promauto-created collectors held
// on a struct, updated from call sites via small setter methods) and wired
// into a plain net/http server the way tphakala/birdnet-go serves its own
// internal endpoints alongside the main application.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the logger process exposes. A nil
// *Registry is safe to call methods on (all methods no-op), so callers
// that construct one conditionally on Settings.Metrics.Enabled don't need
// to guard every call site.
type Registry struct {
	samplerCadence    prometheus.Histogram
	samplerErrors     *prometheus.CounterVec
	aggregatorLatency *prometheus.HistogramVec
	aggregatorRows    *prometheus.CounterVec
	syncQueueDepth    *prometheus.GaugeVec
	syncUploadErrors  *prometheus.CounterVec
	deviceConnected   prometheus.Gauge
	deviceStallResets prometheus.Counter
	buildInfo         *prometheus.GaugeVec
}

// New registers and returns a Registry. Each process must call this at
// most once; registering the same collector name twice panics, matching
// promauto's behavior elsewhere in the corpus.
func New() *Registry {
	return &Registry{
		samplerCadence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "acoustic_logger_sample_interval_seconds",
			Help:    "Observed interval between successive wall-clock-synchronous samples.",
			Buckets: []float64{0.9, 0.95, 0.99, 1.0, 1.01, 1.05, 1.1, 1.5, 2.0},
		}),
		samplerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acoustic_logger_sampler_errors_total",
			Help: "Sampling failures by reason (read, parse, timeout).",
		}, []string{"reason"}),
		aggregatorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acoustic_logger_aggregation_latency_seconds",
			Help:    "Time taken to compute and persist a window's aggregate once its samples are complete.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"interval"}),
		aggregatorRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acoustic_logger_aggregation_rows_total",
			Help: "Aggregate rows written, by interval.",
		}, []string{"interval"}),
		syncQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "acoustic_logger_sync_queue_depth",
			Help: "Unsent rows awaiting remote upload, by table.",
		}, []string{"table"}),
		syncUploadErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acoustic_logger_sync_upload_errors_total",
			Help: "Remote upload failures, by sync loop (tabular, audio, devicestatus).",
		}, []string{"loop"}),
		deviceConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "acoustic_logger_device_connected",
			Help: "1 if the sound level meter is currently present, 0 otherwise.",
		}),
		deviceStallResets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acoustic_logger_device_stall_resets_total",
			Help: "Total runs of the device disconnect callback (device loss, stall watchdog, scheduled reset or shutdown).",
		}),
		buildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "acoustic_logger_build_info",
			Help: "Always 1; labeled with version/commit for inventory queries.",
		}, []string{"version", "commit"}),
	}
}

// ObserveSampleInterval records the elapsed time since the previous sample.
func (r *Registry) ObserveSampleInterval(d time.Duration) {
	if r == nil {
		return
	}
	r.samplerCadence.Observe(d.Seconds())
}

// IncSamplerError records a sampling failure by reason.
func (r *Registry) IncSamplerError(reason string) {
	if r == nil {
		return
	}
	r.samplerErrors.WithLabelValues(reason).Inc()
}

// ObserveAggregationLatency records how long a window's aggregation took.
func (r *Registry) ObserveAggregationLatency(interval string, d time.Duration) {
	if r == nil {
		return
	}
	r.aggregatorLatency.WithLabelValues(interval).Observe(d.Seconds())
	r.aggregatorRows.WithLabelValues(interval).Inc()
}

// SetSyncQueueDepth records the current unsent-row backlog for table.
func (r *Registry) SetSyncQueueDepth(table string, depth int) {
	if r == nil {
		return
	}
	r.syncQueueDepth.WithLabelValues(table).Set(float64(depth))
}

// IncSyncUploadError records an upload failure in the named loop.
func (r *Registry) IncSyncUploadError(loop string) {
	if r == nil {
		return
	}
	r.syncUploadErrors.WithLabelValues(loop).Inc()
}

// SetDeviceConnected reflects the DeviceSupervisor's presence state.
func (r *Registry) SetDeviceConnected(connected bool) {
	if r == nil {
		return
	}
	if connected {
		r.deviceConnected.Set(1)
	} else {
		r.deviceConnected.Set(0)
	}
}

// IncDeviceStallReset records one run of the device disconnect callback;
// that callback runs on device loss, a stall-watchdog trip, a scheduled
// reset and process shutdown alike, and does not tell them apart.
func (r *Registry) IncDeviceStallReset() {
	if r == nil {
		return
	}
	r.deviceStallResets.Inc()
}

// SetBuildInfo publishes the running binary's version/commit as a
// constant gauge, queryable from Prometheus without parsing logs.
func (r *Registry) SetBuildInfo(version, commit string) {
	if r == nil {
		return
	}
	r.buildInfo.WithLabelValues(version, commit).Set(1)
}

// Server serves /metrics on listen until ctx is cancelled. It is a thin
// net/http wrapper, matching SPEC_FULL.md's instruction to expose the
// registry "via net/http" rather than the teacher's echo-based
// httpcontroller, which is sized for a full web UI this process doesn't
// have.
type Server struct {
	listen string
	log    *slog.Logger
	srv    *http.Server
}

// NewServer returns a Server bound to listen (host:port), serving the
// default Prometheus registry (the one promauto.NewXxx above registers
// into).
func NewServer(listen string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		listen: listen,
		log:    log.With("service", "metrics"),
		srv:    &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Run starts the listener and blocks until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics endpoint listening", "addr", s.listen)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
