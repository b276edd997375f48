// Package systemd reports service state to the service manager through the
// sd_notify protocol. Every call is a no-op when the process was not started
// by systemd.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/relaynode/internal/logging"
)

// Notifier sends readiness, status and watchdog messages.
type Notifier struct {
	logger logging.Logger
}

// NewNotifier creates a notifier logging through logger.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() error {
	return n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() error {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) error {
	return n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// RunWatchdog pings the watchdog at half the configured interval until ctx
// is done. It returns immediately when the unit has no WatchdogSec.
func (n *Notifier) RunWatchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	if interval <= 0 {
		return nil
	}

	n.logger.Info("Watchdog enabled", "interval", interval)
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := n.send(daemon.SdNotifyWatchdog); err != nil {
				n.logger.Warn("Watchdog ping failed", "error", err)
			}
		}
	}
}

func (n *Notifier) send(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("sd_notify %q: %w", state, err)
	}
	if sent {
		n.logger.Debug("Notified service manager", "state", state)
	}
	return nil
}
