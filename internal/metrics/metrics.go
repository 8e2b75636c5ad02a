// Package metrics exposes Prometheus collectors for the synchronizer, the change
// feed worker and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/songbook/internal/catalog"
	"github.com/desertthunder/songbook/internal/models"
)

// Observer implements [catalog.Recorder] and records worker and HTTP activity.
type Observer struct {
	registry *prometheus.Registry

	mutations   *prometheus.CounterVec
	syncLatency *prometheus.HistogramVec
	changes     *prometheus.CounterVec
	imported    *prometheus.CounterVec
	requests    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
}

var _ catalog.Recorder = (*Observer)(nil)

// NewObserver creates an Observer with its own registry.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songbook_category_mutations_total",
			Help: "Category index mutations by field, op and outcome",
		}, []string{"field", "op", "outcome"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "songbook_category_sync_seconds",
			Help:    "Latency of one category index sync",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songbook_change_events_total",
			Help: "Change feed events by result",
		}, []string{"result"}),
		imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songbook_import_rows_total",
			Help: "Imported rows by status",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "songbook_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		reqLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "songbook_http_request_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	o.registry.MustRegister(
		o.mutations,
		o.syncLatency,
		o.changes,
		o.imported,
		o.requests,
		o.reqLatency,
	)
	return o
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// MutationApplied counts one index mutation.
func (o *Observer) MutationApplied(field models.Field, op catalog.Op, outcome catalog.Outcome) {
	o.mutations.WithLabelValues(string(field), op.String(), outcome.String()).Inc()
}

// SyncCompleted observes the latency of one sync.
func (o *Observer) SyncCompleted(d time.Duration, err error) {
	o.syncLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

// ChangeProcessed counts a change event result: "acked", "failed" or "dead".
func (o *Observer) ChangeProcessed(result string) {
	o.changes.WithLabelValues(result).Inc()
}

// RowImported counts one imported row.
func (o *Observer) RowImported(err error) {
	o.imported.WithLabelValues(status(err)).Inc()
}

// RequestServed records one HTTP request.
func (o *Observer) RequestServed(method string, code int, d time.Duration) {
	o.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	o.reqLatency.WithLabelValues(method).Observe(d.Seconds())
}

// Registry returns the registry holding every collector.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
