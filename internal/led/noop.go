package led

import "github.com/smazurov/relaynode/internal/logging"

// noop stands in on boards without a known status LED.
type noop struct {
	logger logging.Logger
}

func (n *noop) Name() string { return "none" }

func (n *noop) Set(p Pattern) error {
	if n.logger != nil {
		n.logger.Debug("Status LED not available", "pattern", p)
	}
	return nil
}
