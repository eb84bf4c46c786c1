// Package metrics owns the Prometheus registry served on the ops port. HTTP
// series are labelled by route pattern, never by raw path.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lamgaraproperties/lamgara-web/internal/version"
)

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	sizeBuckets    = prometheus.ExponentialBuckets(256, 4, 8)
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	// http
	inflight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDur      *prometheus.HistogramVec
	respBytes   *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	panics      prometheus.Counter

	// rate limiting
	limitDenied   *prometheus.CounterVec
	limitCapacity prometheus.Counter

	// process
	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge

	domainMetrics
}

// New builds a private registry with the Go and process collectors and
// every series the server exports.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := factory{reg}

	m := &ServerMetrics{
		reg: reg,

		inflight: f.gauge("http_inflight_requests", "HTTP requests currently being served"),
		reqTotal: f.counterVec("http_requests_total", "HTTP requests by method, route and status",
			"method", "route", "status"),
		reqDur: f.histogramVec("http_request_duration_seconds", "HTTP request latency by method and route",
			latencyBuckets, "method", "route"),
		respBytes: f.histogramVec("http_response_size_bytes", "HTTP response body size by method and route",
			sizeBuckets, "method", "route"),
		errorsTotal: f.counterVec("http_errors_total", "HTTP 5xx responses by method and route",
			"method", "route"),
		panics: f.counter("http_panic_total", "Handler panics recovered by the server"),

		limitDenied: f.counterVec("http_requests_rate_limited_total", "Requests refused by a rate limiter",
			"limiter"),
		limitCapacity: f.counter("http_requests_rate_limited_capacity_total",
			"Times a rate limiter's visitor table filled up"),

		buildInfo: f.gaugeVec("build_info", "Build metadata of the running binary; always 1",
			"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"),
		profilingActive: f.gauge("profiling_active", "1 while continuous profiling is running"),

		domainMetrics: newDomainMetrics(f),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

// factory creates collectors already registered on reg.
type factory struct{ reg prometheus.Registerer }

func (f factory) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.reg.MustRegister(c)
	return c
}

func (f factory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}

func (f factory) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(g)
	return g
}

func (f factory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	f.reg.MustRegister(h)
	return h
}

// Handler serves the registry in the OpenMetrics format when asked for it.
func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) IncHttpPanic() { m.panics.Inc() }

// IncRateLimitDenied counts a denial by the named limiter ("global", "login").
func (m *ServerMetrics) IncRateLimitDenied(limiter string) {
	m.limitDenied.WithLabelValues(limiter).Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() { m.limitCapacity.Inc() }

// SetBuildInfoFromVersion publishes vi once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.WithLabelValues(app, component, vi.Version, vi.Commit, vi.CommitDate,
		vi.BuildId, vi.BuildDate, dirty, vi.GoVersion).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.profilingActive.Set(v)
}
