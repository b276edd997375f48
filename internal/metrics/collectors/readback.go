// Package collectors polls the relay hardware for metrics that are not
// produced by normal request traffic.
package collectors

import (
	"context"
	"time"

	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/metrics"
	"github.com/smazurov/relaynode/internal/relay"
)

// DefaultReadbackInterval is how often the hardware is polled.
const DefaultReadbackInterval = 30 * time.Second

// ReadbackSource is the part of the relay controller the collector reads.
type ReadbackSource interface {
	Written() []relay.Word
	Readback() ([]relay.Word, error)
	TransportNames() []string
}

// ReadbackCollector compares what every transport reports with what was last
// written, catching expanders that reset or lines driven by something else.
type ReadbackCollector struct {
	source   ReadbackSource
	interval time.Duration
	logger   logging.Logger

	drifted map[string]bool
}

// NewReadbackCollector creates a collector. A non-positive interval selects
// DefaultReadbackInterval.
func NewReadbackCollector(source ReadbackSource, interval time.Duration) *ReadbackCollector {
	if interval <= 0 {
		interval = DefaultReadbackInterval
	}
	return &ReadbackCollector{
		source:   source,
		interval: interval,
		logger:   logging.GetLogger("hardware"),
		drifted:  make(map[string]bool),
	}
}

// Run polls until ctx is done. It always returns nil.
func (r *ReadbackCollector) Run(ctx context.Context) error {
	r.logger.Info("Starting hardware readback polling", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.collect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *ReadbackCollector) collect() {
	read, err := r.source.Readback()
	if err != nil {
		metrics.IncReadbackErrors()
		r.logger.Warn("Hardware readback failed", "error", err)
		return
	}
	written := r.source.Written()

	for i, name := range r.source.TransportNames() {
		if i >= len(read) || i >= len(written) {
			break
		}
		inSync := read[i] == written[i]
		metrics.SetTransportInSync(name, inSync)

		// Log transitions only, not every poll.
		if inSync == !r.drifted[name] {
			continue
		}
		r.drifted[name] = !inSync
		if inSync {
			r.logger.Info("Hardware back in sync", "transport", name)
		} else {
			r.logger.Warn("Hardware drifted from last write",
				"transport", name,
				"written", written[i],
				"readback", read[i])
		}
	}
}
