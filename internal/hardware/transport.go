package hardware

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/smazurov/relaynode/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Driver names accepted by Open.
const (
	DriverPeriph = "periph" // GPIO via periph.io, or I2C expanders via periph.io
	DriverCdev   = "cdev"   // GPIO via the Linux GPIO character device
	DriverSim    = "sim"    // in-memory transports, no hardware
)

// Kind selects how relays are physically wired.
type Kind string

const (
	KindGPIO     Kind = "gpio"     // relays wired straight to GPIO lines
	KindExpander Kind = "expander" // relays behind 8-bit I2C expanders
)

// ErrUnsupported is returned when a driver cannot serve the requested wiring.
var ErrUnsupported = errors.New("unsupported hardware driver")

// Transport moves control words to and from one physical device.
// A word is one byte per device: for GPIO, bit i drives line i.
type Transport interface {
	Name() string
	Send(data []byte) error
	Receive(length int) ([]byte, error)
	Close() error
}

// Config describes the hardware to open.
type Config struct {
	Kind   Kind
	Driver string

	// GPIO wiring: one BCM line number per bit of the single control word.
	Pins []int
	Chip string

	// Expander wiring: one device address per control word.
	Bus       string
	Addresses []uint16
}

// Open opens every transport described by cfg, in word order.
// On failure nothing is left open.
func Open(cfg Config, logger logging.Logger) ([]Transport, error) {
	if logger != nil {
		logger.Info("Opening relay hardware",
			"kind", cfg.Kind,
			"driver", cfg.Driver,
			"board_model", detectBoard())
	}

	switch cfg.Kind {
	case KindGPIO:
		var t Transport
		var err error
		switch cfg.Driver {
		case DriverPeriph:
			t, err = OpenPeriphGPIO(cfg.Pins)
		case DriverCdev:
			t, err = OpenCdevGPIO(cfg.Chip, cfg.Pins)
		case DriverSim:
			t = NewSimulated("gpio", len(cfg.Pins))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Driver)
		}
		if err != nil {
			return nil, err
		}
		return []Transport{t}, nil

	case KindExpander:
		switch cfg.Driver {
		case DriverPeriph:
			return OpenExpanders(cfg.Bus, cfg.Addresses)
		case DriverSim:
			transports := make([]Transport, len(cfg.Addresses))
			for i, addr := range cfg.Addresses {
				transports[i] = NewSimulated(fmt.Sprintf("expander@%#x", addr), 8)
			}
			return transports, nil
		default:
			return nil, fmt.Errorf("%w: %q cannot drive I2C expanders", ErrUnsupported, cfg.Driver)
		}
	}

	return nil, fmt.Errorf("unknown hardware kind %q", cfg.Kind)
}

// CloseAll closes every transport and joins the errors.
func CloseAll(transports []Transport) error {
	var errs []error
	for _, t := range transports {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}

func wordBit(word byte, bit int) bool {
	return word&(1<<uint(bit)) != 0
}
