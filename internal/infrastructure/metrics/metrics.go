package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solarbridge"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Metrics holds the bridge's Prometheus collectors on a private registry.
// It implements the controller's MetricsRecorder.
type Metrics struct {
	registry *prometheus.Registry

	refreshes        *prometheus.CounterVec
	refreshDuration  *prometheus.HistogramVec
	coalesced        prometheus.Counter
	queryFailures    *prometheus.CounterVec
	commands         *prometheus.CounterVec
	paired           prometheus.Gauge
	historyDropped   prometheus.Counter
	wsClients        prometheus.Gauge
	lastRefreshStamp prometheus.Gauge
}

// New creates and registers the collectors, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Device refresh sessions run, by reason.",
		}, []string{"reason"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full device refresh session.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"reason"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_coalesced_total",
			Help:      "Refresh requests folded into an already pending refresh.",
		}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Failed device queries, by query kind.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device commands sent, by command and outcome.",
		}, []string{"command", "outcome"}),
		paired: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paired",
			Help:      "Pairing state (1=paired, 0=unpaired).",
		}),
		historyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_dropped_total",
			Help:      "Characteristic changes not recorded because the history queue was full.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		lastRefreshStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time the last refresh session finished.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshes,
		m.refreshDuration,
		m.coalesced,
		m.queryFailures,
		m.commands,
		m.paired,
		m.historyDropped,
		m.wsClients,
		m.lastRefreshStamp,
	)
	return m
}

// RefreshCompleted records a finished refresh session.
func (m *Metrics) RefreshCompleted(reason string, d time.Duration, _ int) {
	m.refreshes.WithLabelValues(reason).Inc()
	m.refreshDuration.WithLabelValues(reason).Observe(d.Seconds())
	m.lastRefreshStamp.SetToCurrentTime()
}

// RefreshCoalesced records a request merged into a pending refresh.
func (m *Metrics) RefreshCoalesced() { m.coalesced.Inc() }

// QueryFailed records a failed query of the given kind.
func (m *Metrics) QueryFailed(kind string) { m.queryFailures.WithLabelValues(kind).Inc() }

// CommandCompleted records a command and whether it succeeded.
func (m *Metrics) CommandCompleted(name string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	m.commands.WithLabelValues(name, outcome).Inc()
}

// SetPaired mirrors the pairing state. It matches the pairing state
// listener signature.
func (m *Metrics) SetPaired(paired bool) {
	if paired {
		m.paired.Set(1)
		return
	}
	m.paired.Set(0)
}

// HistoryDropped adds n to the dropped history counter.
func (m *Metrics) HistoryDropped(n uint64) { m.historyDropped.Add(float64(n)) }

// SetWebSocketClients sets the connected client gauge.
func (m *Metrics) SetWebSocketClients(n int) { m.wsClients.Set(float64(n)) }

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
