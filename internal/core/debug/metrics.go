package debug

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "anvil"

// Metrics are the Prometheus collectors updated by the server. All of them
// are safe for concurrent use.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	ConnectionsDenied prometheus.Counter
	PacketsReceived   *prometheus.CounterVec
	PacketsSent       *prometheus.CounterVec
	BytesSent         prometheus.Counter
	Transitions       *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	Logins            prometheus.Counter
	HandleDuration    *prometheus.HistogramVec
}

// NewMetrics creates the server's collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open client connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		ConnectionsDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_denied_total",
			Help:      "Connections closed because the server was full",
		}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total number of packets received from clients",
		}, []string{"state", "packet"}),
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total number of packets queued for clients",
		}, []string{"state", "packet"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of bytes written to clients",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Connection state changes",
		}, []string{"from", "to"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Connections terminated by an error, by kind",
		}, []string{"kind"}),
		Logins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of successful logins",
		}),
		HandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_handle_duration_seconds",
			Help:      "Time spent handling a single packet",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"state"}),
	}
}

// ObserveHandle records how long handling one packet in state took.
func (m *Metrics) ObserveHandle(state string, start time.Time) {
	m.HandleDuration.WithLabelValues(state).Observe(time.Since(start).Seconds())
}
