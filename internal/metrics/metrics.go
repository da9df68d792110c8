// Package metrics exposes the server's Prometheus instrumentation. The
// teacher tracks live-topic counts with expvar (hub.go); this server tracks
// the analogous counters (connections, sessions, messages, pushes) with
// prometheus/client_golang instead, registered against a private registry so
// tests can construct as many servers as they like without colliding on the
// default global registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge the server updates.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsTotal prometheus.Counter
	SessionsActive   prometheus.Gauge
	PMSentTotal      prometheus.Counter
	GMSentTotal      prometheus.Counter
	PushesTotal      *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
}

// New constructs and registers a fresh set of metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linechatd_connections_total",
			Help: "Total TCP connections accepted.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linechatd_sessions_active",
			Help: "Number of currently active sessions.",
		}),
		PMSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linechatd_pm_sent_total",
			Help: "Total PM_SEND commands accepted.",
		}),
		GMSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linechatd_gm_sent_total",
			Help: "Total GM_SEND commands accepted.",
		}),
		PushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linechatd_pushes_total",
			Help: "Total pushes written to connections, by subject.",
		}, []string{"subject"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linechatd_errors_total",
			Help: "Total error replies, by numeric code.",
		}, []string{"code"}),
	}

	reg.MustRegister(m.ConnectionsTotal, m.SessionsActive, m.PMSentTotal, m.GMSentTotal, m.PushesTotal, m.ErrorsTotal)
	return m
}

// Serve starts an HTTP endpoint exposing the registry at /metrics. It blocks;
// callers should run it in its own goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
