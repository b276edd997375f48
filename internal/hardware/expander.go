package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// sharedBus reference-counts an I2C bus used by several expanders.
type sharedBus struct {
	mu   sync.Mutex
	bus  i2c.BusCloser
	refs int
}

func (b *sharedBus) release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs--
	if b.refs == 0 {
		return b.bus.Close()
	}
	return nil
}

// Expander is an 8-bit quasi-bidirectional I2C port expander (PCF8574
// style): a one byte write latches the outputs, a one byte read samples them.
type Expander struct {
	name   string
	dev    *i2c.Dev
	shared *sharedBus

	mu     sync.Mutex
	closed bool
}

// OpenExpanders opens busName once and returns one transport per address.
func OpenExpanders(busName string, addresses []uint16) ([]Transport, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("i2c: no expander addresses configured")
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("i2c: host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c: couldn't open bus %q: %w", busName, err)
	}

	shared := &sharedBus{bus: bus, refs: len(addresses)}
	transports := make([]Transport, len(addresses))
	for i, addr := range addresses {
		transports[i] = &Expander{
			name:   fmt.Sprintf("%s@%#x", busName, addr),
			dev:    &i2c.Dev{Bus: bus, Addr: addr},
			shared: shared,
		}
	}
	return transports, nil
}

// Name returns bus and address.
func (e *Expander) Name() string { return e.name }

// Send writes data to the device.
func (e *Expander) Send(data []byte) error {
	if _, err := e.dev.Write(data); err != nil {
		return fmt.Errorf("i2c: couldn't send data to %s: %w", e.name, err)
	}
	return nil
}

// Receive reads length bytes from the device.
func (e *Expander) Receive(length int) ([]byte, error) {
	buf := make([]byte, length)
	if err := e.dev.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("i2c: couldn't receive data from %s: %w", e.name, err)
	}
	return buf, nil
}

// Close releases this device's hold on the bus.
func (e *Expander) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.shared.release()
}
