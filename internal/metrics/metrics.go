// Package metrics provides Prometheus metrics for the artifact worker and
// the stacking engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "allsky"

// Build results.
const (
	ResultBuilt     = "built"
	ResultSkipped   = "skipped"
	ResultAbandoned = "abandoned"
	ResultFailed    = "failed"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	Requests         *prometheus.CounterVec
	Builds           *prometheus.CounterVec
	BuildDuration    *prometheus.HistogramVec
	EncoderRuns      *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	UploadsEnqueued  *prometheus.CounterVec
	LockContention   prometheus.Counter
	BuildsInProgress prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the metrics with reg. Passing a *prometheus.Registry also
// makes Handler serve it.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Build requests taken from the queue",
			},
			[]string{"type"},
		),
		Builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Artifact sub-builds by kind and result",
			},
			[]string{"kind", "result"},
		),
		BuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Time to produce an artifact",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
			},
			[]string{"kind"},
		),
		EncoderRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encoder_runs_total",
				Help:      "External encoder invocations by outcome",
			},
			[]string{"tool", "result"},
		),
		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Per-frame registration outcomes",
			},
			[]string{"outcome"},
		),
		UploadsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_enqueued_total",
				Help:      "Artifacts handed to the upload queue",
			},
			[]string{"kind"},
		),
		LockContention: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_contention_total",
				Help:      "Requests refused because another build held the lock",
			},
		),
		BuildsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "builds_in_progress",
				Help:      "1 while this process holds the build lock",
			},
		),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// IncRequest counts a dequeued request of type "build" or "stop".
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(kind).Inc()
}

// ObserveBuild counts a sub-build and, for built artifacts, its duration.
func (m *Metrics) ObserveBuild(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Builds.WithLabelValues(kind, result).Inc()
	if result == ResultBuilt {
		m.BuildDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveEncoder counts an external tool run.
func (m *Metrics) ObserveEncoder(tool string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.EncoderRuns.WithLabelValues(tool, result).Inc()
}

// ObserveRegistration counts one frame's registration outcome.
func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// IncUpload counts an upload hand-off.
func (m *Metrics) IncUpload(kind string) {
	if m == nil {
		return
	}
	m.UploadsEnqueued.WithLabelValues(kind).Inc()
}

// IncLockContention counts a refused lock acquisition.
func (m *Metrics) IncLockContention() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

// SetBuilding reflects whether the build lock is held.
func (m *Metrics) SetBuilding(active bool) {
	if m == nil {
		return
	}
	if active {
		m.BuildsInProgress.Set(1)
		return
	}
	m.BuildsInProgress.Set(0)
}

// Handler serves the registry passed to New, or the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values to path in the text exposition
// format read by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || m.gatherer == nil {
		return errors.New("metrics registry is not gatherable")
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}

// Serve exposes /metrics and /health on address until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
