// Package metrics defines the Prometheus instruments exported on /metrics.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bc_mcp"

// Metrics holds every instrument and the registry they belong to.
type Metrics struct {
	registry *prometheus.Registry

	// ResolveTotal counts resolutions by the tier that answered.
	// Labels: tier (store, snapshot, default)
	ResolveTotal *prometheus.CounterVec

	// ActiveStreams tracks open delivery sessions.
	// Labels: transport (sse, websocket)
	ActiveStreams *prometheus.GaugeVec

	// KeepAlivesTotal counts keep-alive frames written.
	KeepAlivesTotal prometheus.Counter

	// ToolCallsTotal counts tool invocations.
	// Labels: tool, status (ok, error, unknown, rate_limited)
	ToolCallsTotal *prometheus.CounterVec

	// RequestDuration measures HTTP handler latency.
	// Labels: method, route, status
	RequestDuration *prometheus.HistogramVec

	// RegenerationsTotal counts snapshot regenerations.
	// Labels: status (success, error)
	RegenerationsTotal *prometheus.CounterVec
}

// New registers every instrument on a fresh registry together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ResolveTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_total",
			Help:      "Rule payload resolutions by answering tier.",
		}, []string{"tier"}),
		ActiveStreams: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_sessions",
			Help:      "Currently open delivery sessions.",
		}, []string{"transport"}),
		KeepAlivesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "keepalives_total",
			Help:      "Keep-alive frames written to clients.",
		}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RegenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "regenerations_total",
			Help:      "Snapshot regenerations by outcome.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveResolve(tier string) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) StreamOpened(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(transport).Inc()
}

func (m *Metrics) StreamClosed(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(transport).Dec()
}

func (m *Metrics) KeepAlive() {
	if m == nil {
		return
	}
	m.KeepAlivesTotal.Inc()
}

func (m *Metrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) Regenerated(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.RegenerationsTotal.WithLabelValues(status).Inc()
}
