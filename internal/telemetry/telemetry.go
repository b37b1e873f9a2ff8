// Package telemetry exposes client-side counters on a private Prometheus
// registry.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mwiater/escombro/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements stats.FoldObserver and backend.ErrorObserver.
type Metrics struct {
	registry *prometheus.Registry

	resultsFolded  prometheus.Counter
	foldsRejected  prometheus.Counter
	backendErrors  *prometheus.CounterVec
	cameraTicks    prometheus.Counter
	cameraFailures prometheus.Counter
	sessionResets  prometheus.Counter
}

// New creates the collectors and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resultsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escombro_results_folded_total",
			Help: "Classification results folded into session statistics",
		}),
		foldsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escombro_folds_rejected_total",
			Help: "Batches rejected because an entry was malformed",
		}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escombro_backend_errors_total",
			Help: "Failed backend exchanges by category",
		}, []string{"kind"}),
		cameraTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escombro_camera_ticks_total",
			Help: "Live detection frames sent to the backend",
		}),
		cameraFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escombro_camera_tick_failures_total",
			Help: "Live detection ticks that did not produce a prediction",
		}),
		sessionResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escombro_session_resets_total",
			Help: "Confirmed session resets",
		}),
	}
	m.registry.MustRegister(
		m.resultsFolded,
		m.foldsRejected,
		m.backendErrors,
		m.cameraTicks,
		m.cameraFailures,
		m.sessionResets,
	)
	return m
}

func (m *Metrics) ObserveFold(n int)               { m.resultsFolded.Add(float64(n)) }
func (m *Metrics) ObserveRejected()                { m.foldsRejected.Inc() }
func (m *Metrics) ObserveBackendError(kind string) { m.backendErrors.WithLabelValues(kind).Inc() }
func (m *Metrics) ObserveReset()                   { m.sessionResets.Inc() }

// ObserveCameraTick counts one live detection attempt.
func (m *Metrics) ObserveCameraTick(err error) {
	m.cameraTicks.Inc()
	if err != nil {
		m.cameraFailures.Inc()
	}
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr is a
// no-op.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.LogEvent("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
