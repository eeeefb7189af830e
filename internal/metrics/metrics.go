// Package metrics exposes run and API counters through Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

const namespace = "sits"

// Recorder owns a private registry with the pipeline and API collectors.
type Recorder struct {
	reg *prometheus.Registry

	zones        *prometheus.GaugeVec
	joinDropped  *prometheus.GaugeVec
	restricted   *prometheus.GaugeVec
	fallbacks    *prometheus.CounterVec
	kindDuration *prometheus.GaugeVec
	kindFailures *prometheus.CounterVec
	lastRun      prometheus.Gauge

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		zones: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "zones",
			Help: "Zones written in the last run.",
		}, []string{"kind"}),
		joinDropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "join_dropped",
			Help: "Records dropped by the census join in the last run.",
		}, []string{"kind", "side"}),
		restricted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "restricted_zones",
			Help: "Zones flagged by a restriction in the last run.",
		}, []string{"kind", "restriction"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallbacks_total",
			Help: "Optional sources that degraded to defaults.",
		}, []string{"kind", "source"}),
		kindDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "kind_duration_seconds",
			Help: "Wall time of the last run per kind.",
		}, []string{"kind"}),
		kindFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "kind_failures_total",
			Help: "Kinds aborted on a required source.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "API requests by route and status.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	r.reg.MustRegister(
		r.zones, r.joinDropped, r.restricted, r.fallbacks,
		r.kindDuration, r.kindFailures, r.lastRun,
		r.requests, r.latency,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// KindDone records the outcome of one kind.
func (r *Recorder) KindDone(kind string, zones, droppedTable, droppedLayer int, d time.Duration) {
	r.zones.WithLabelValues(kind).Set(float64(zones))
	r.joinDropped.WithLabelValues(kind, "table").Set(float64(droppedTable))
	r.joinDropped.WithLabelValues(kind, "layer").Set(float64(droppedLayer))
	r.kindDuration.WithLabelValues(kind).Set(d.Seconds())
}

// KindFailed counts a kind aborted on a required source.
func (r *Recorder) KindFailed(kind string) {
	r.kindFailures.WithLabelValues(kind).Inc()
}

// Restricted records how many zones a restriction flagged.
func (r *Recorder) Restricted(kind, restriction string, n int) {
	r.restricted.WithLabelValues(kind, restriction).Set(float64(n))
}

// Fallback counts an optional source that degraded to defaults.
func (r *Recorder) Fallback(kind, source string) {
	r.fallbacks.WithLabelValues(kind, source).Inc()
}

// RunFinished stamps the completion time of a run.
func (r *Recorder) RunFinished(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Request records one API request.
func (r *Recorder) Request(route string, status int, d time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WriteTextfile writes the registry to path for a node_exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
