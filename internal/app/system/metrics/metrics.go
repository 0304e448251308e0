// Package metrics exposes Prometheus counters for the facility provider and
// the per-session store registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes.
const (
	OutcomeGranted    = "granted"
	OutcomeUnchanged  = "unchanged"
	OutcomeRedirected = "redirected"
	OutcomeNoAccess   = "no_facilities"
	OutcomeNotFound   = "not_found"
	OutcomeSuperseded = "superseded"
	OutcomeError      = "error"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	resolutions *prometheus.CounterVec
	seeds       *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	stores      prometheus.Gauge
	evictions   prometheus.Counter
}

// New registers the vpcroadmap collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_resolutions_total",
			Help:      "URL facility-code resolutions by outcome.",
		}, []string{"outcome"}),
		seeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_seeds_total",
			Help:      "Membership seed attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_refreshes_total",
			Help:      "Membership refresh attempts by result.",
		}, []string{"result"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_fetch_seconds",
			Help:      "Latency of membership and facility lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		stores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_stores",
			Help:      "Live per-session facility stores.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vpcroadmap",
			Name:      "facility_store_evictions_total",
			Help:      "Idle per-session stores evicted.",
		}),
	}
	m.reg.MustRegister(
		m.resolutions, m.seeds, m.refreshes, m.fetchTime, m.stores, m.evictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Nil receivers are no-ops so callers never need to guard.

func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSeed(err error) {
	if m == nil {
		return
	}
	m.seeds.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result(err)).Inc()
}

// ObserveFetch records how long a lookup against source took.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchTime.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) SetStores(n int) {
	if m == nil {
		return
	}
	m.stores.Set(float64(n))
}

func (m *Metrics) AddEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
