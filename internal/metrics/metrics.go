// Package metrics registers the Prometheus collectors shared by the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. Use New with a dedicated registry in tests.
type Metrics struct {
	ExpensesCreated   prometheus.Counter
	ExpensesReplayed  prometheus.Counter
	ConflictsResolved prometheus.Counter
	PublishFailures   prometheus.Counter
	SheetsAppends     *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry that also exports the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		ExpensesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expenses_created_total",
			Help: "Expenses inserted as new rows.",
		}),
		ExpensesReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expenses_replayed_total",
			Help: "Create requests answered with an existing row.",
		}),
		ConflictsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expenses_insert_conflicts_total",
			Help: "Concurrent inserts resolved by re-reading the stored row.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expenses_event_publish_failures_total",
			Help: "expense.created events that could not be published.",
		}),
		SheetsAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expenses_sheets_appends_total",
			Help: "Rows appended to the mirror spreadsheet by outcome.",
		}, []string{"outcome"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		registry: reg,
	}

	reg.MustRegister(
		m.ExpensesCreated,
		m.ExpensesReplayed,
		m.ConflictsResolved,
		m.PublishFailures,
		m.SheetsAppends,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
