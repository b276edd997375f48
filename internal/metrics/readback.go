package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transportInSync = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "hardware",
		Name:      "in_sync",
		Help:      "Whether the word read back from a transport matches the last word written (1) or not (0)",
	}, []string{"transport"})

	readbackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hardware",
		Name:      "readback_errors_total",
		Help:      "Failed hardware readback polls",
	})
)

// SetTransportInSync records the result of comparing readback to the last write.
func SetTransportInSync(transport string, inSync bool) {
	v := 0.0
	if inSync {
		v = 1
	}
	transportInSync.WithLabelValues(transport).Set(v)
}

// IncReadbackErrors counts a failed readback poll.
func IncReadbackErrors() { readbackErrors.Inc() }
