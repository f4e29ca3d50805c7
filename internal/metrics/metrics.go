// Package metrics exposes Prometheus instruments for the HTTP API, the
// analysis pipeline and the result sinks.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/processing"
)

const namespace = "sentiscope"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge

	RunsTotal      *prometheus.CounterVec
	RecordsTotal   *prometheus.CounterVec
	SkippedTotal   prometheus.Counter
	FetchErrors    *prometheus.CounterVec
	ExportsTotal   *prometheus.CounterVec
	ExportDuration *prometheus.HistogramVec
}

// New creates every instrument and registers it on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Classified records by label.",
		}, []string{"label"}),
		SkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "skipped_documents_total",
			Help:      "Malformed documents left out of a run.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "fetch_errors_total",
			Help:      "Document source failures by kind.",
		}, []string{"kind"}),
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "reports_total",
			Help:      "Report exports by sink and status.",
		}, []string{"sink", "status"}),
		ExportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Time spent exporting one report to one sink.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.RequestDuration, m.RequestsTotal, m.InFlightGauge,
		m.RunsTotal, m.RecordsTotal, m.SkippedTotal, m.FetchErrors,
		m.ExportsTotal, m.ExportDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request metrics labelled by chi route pattern. It skips
// /metrics and /healthz.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		m.InFlightGauge.Inc()
		defer m.InFlightGauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// ObserveRun counts one pipeline run.
func (m *Metrics) ObserveRun(mode processing.Mode, result processing.Result, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RunsTotal.WithLabelValues(mode.String(), "error").Inc()
		var fe *models.FetchError
		if errors.As(err, &fe) {
			m.FetchErrors.WithLabelValues(string(fe.Kind)).Inc()
		}
		return
	}

	m.RunsTotal.WithLabelValues(mode.String(), "ok").Inc()
	for _, rec := range result.Records {
		m.RecordsTotal.WithLabelValues(string(rec.Label)).Inc()
	}
	m.SkippedTotal.Add(float64(len(result.Skipped)))
}

// InstrumentSinks wraps each sink so its exports are counted and timed.
func (m *Metrics) InstrumentSinks(sinks ...processing.Sink) []processing.Sink {
	if m == nil {
		return sinks
	}
	out := make([]processing.Sink, len(sinks))
	for i, s := range sinks {
		out[i] = instrumentedSink{Sink: s, m: m}
	}
	return out
}

type instrumentedSink struct {
	processing.Sink
	m *Metrics
}

func (s instrumentedSink) Export(ctx context.Context, report models.Report) error {
	start := time.Now()
	err := s.Sink.Export(ctx, report)
	s.m.ExportDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	s.m.ExportsTotal.WithLabelValues(s.Name(), status).Inc()
	return err
}
