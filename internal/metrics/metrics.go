// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaynode"

var (
	relayEnabled = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "enabled",
		Help:      "Whether the relay is energized (1) or released (0)",
	}, []string{"relay"})

	hardwareWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hardware",
		Name:      "writes_total",
		Help:      "Control words written to a transport",
	}, []string{"transport"})

	hardwareFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hardware",
		Name:      "write_errors_total",
		Help:      "Failed control word writes",
	}, []string{"transport"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Relay API responses by method and status code",
	}, []string{"method", "status"})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "connections_active",
		Help:      "Connections currently being served",
	})

	connectionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "connection_timeouts_total",
		Help:      "Connections closed because the deadline expired",
	})

	acceptErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "accept_errors_total",
		Help:      "Failed accept calls on the relay API listener",
	})
)

// SetRelayEnabled records the state of a relay.
func SetRelayEnabled(relay string, enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	relayEnabled.WithLabelValues(relay).Set(v)
}

// IncHardwareWrites counts a successful word write.
func IncHardwareWrites(transport string) {
	hardwareWrites.WithLabelValues(transport).Inc()
}

// IncHardwareFaults counts a failed word write.
func IncHardwareFaults(transport string) {
	hardwareFaults.WithLabelValues(transport).Inc()
}

// ObserveResponse counts a response sent by the relay API.
func ObserveResponse(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ConnectionOpened marks a connection as in flight.
func ConnectionOpened() { connectionsActive.Inc() }

// ConnectionClosed marks a connection as finished.
func ConnectionClosed() { connectionsActive.Dec() }

// IncConnectionTimeouts counts a deadline expiry.
func IncConnectionTimeouts() { connectionTimeouts.Inc() }

// IncAcceptErrors counts a failed accept.
func IncAcceptErrors() { acceptErrors.Inc() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
