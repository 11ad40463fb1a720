// Package metrics exposes run counters for Prometheus scraping. All
// methods are nil-receiver safe so collection stays optional.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics holds the run's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	itemsProcessed  *prometheus.CounterVec
	retryAttempts   *prometheus.CounterVec
	generateSeconds prometheus.Histogram
	quotaUsage      prometheus.Gauge
	paused          prometheus.Gauge
	inflightWorkers prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biograph_items_processed_total",
			Help: "Work items completed, by outcome.",
		}, []string{"status"}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biograph_retry_attempts_total",
			Help: "Retries performed, by error kind.",
		}, []string{"kind"}),
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "biograph_generate_duration_seconds",
			Help:    "Remote generation call duration, retries included.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		quotaUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "biograph_quota_usage_percent",
			Help: "Latest quota usage percentage.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "biograph_paused",
			Help: "1 while the pause gate is closed.",
		}),
		inflightWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "biograph_inflight_workers",
			Help: "Workers currently processing an item.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.itemsProcessed,
		m.retryAttempts,
		m.generateSeconds,
		m.quotaUsage,
		m.paused,
		m.inflightWorkers,
	)
	return m
}

// ItemProcessed counts one completed item.
func (m *Metrics) ItemProcessed(status string) {
	if m == nil {
		return
	}
	m.itemsProcessed.WithLabelValues(status).Inc()
}

// RetryAttempt counts one retry of the given error kind.
func (m *Metrics) RetryAttempt(kind string) {
	if m == nil {
		return
	}
	m.retryAttempts.WithLabelValues(kind).Inc()
}

// ObserveGenerate records one generation call's wall time.
func (m *Metrics) ObserveGenerate(d time.Duration) {
	if m == nil {
		return
	}
	m.generateSeconds.Observe(d.Seconds())
}

// SetQuotaUsage publishes the latest usage percentage.
func (m *Metrics) SetQuotaUsage(pct float64) {
	if m == nil {
		return
	}
	m.quotaUsage.Set(pct)
}

// SetPaused publishes the pause gate state.
func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

// WorkerStarted marks a worker busy.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.inflightWorkers.Inc()
}

// WorkerDone marks a worker idle.
func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.inflightWorkers.Dec()
}

// Handler serves this registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
