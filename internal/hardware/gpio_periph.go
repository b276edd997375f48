package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphGPIO drives a group of GPIO lines through periph.io. Pins are
// addressed by their BCM numbers; bit i of a word drives Pins[i].
type PeriphGPIO struct {
	pins []gpio.PinIO
}

// OpenPeriphGPIO initialises the periph host drivers and resolves every pin.
func OpenPeriphGPIO(pins []int) (*PeriphGPIO, error) {
	if len(pins) == 0 || len(pins) > 8 {
		return nil, fmt.Errorf("periph gpio: need 1..8 pins, got %d", len(pins))
	}

	// host.Init is idempotent.
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph gpio: host init: %w", err)
	}

	resolved := make([]gpio.PinIO, len(pins))
	for i, n := range pins {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return nil, fmt.Errorf("periph gpio: pin GPIO%d not found", n)
		}
		resolved[i] = p
	}

	return &PeriphGPIO{pins: resolved}, nil
}

// Name returns a description of the line group.
func (g *PeriphGPIO) Name() string { return "gpio" }

// Send drives every line from the first byte of data.
func (g *PeriphGPIO) Send(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("periph gpio: empty write")
	}
	word := data[0]
	for i, p := range g.pins {
		if err := p.Out(gpio.Level(wordBit(word, i))); err != nil {
			return fmt.Errorf("periph gpio: drive %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Receive samples every line into a single word. Only length 1 is meaningful.
func (g *PeriphGPIO) Receive(length int) ([]byte, error) {
	if length != 1 {
		return nil, fmt.Errorf("periph gpio: can only read 1 byte, asked for %d", length)
	}
	var word byte
	for i, p := range g.pins {
		if p.Read() == gpio.High {
			word |= 1 << uint(i)
		}
	}
	return []byte{word}, nil
}

// Close stops driving the lines.
func (g *PeriphGPIO) Close() error {
	for _, p := range g.pins {
		if err := p.Halt(); err != nil {
			return fmt.Errorf("periph gpio: halt %s: %w", p.Name(), err)
		}
	}
	return nil
}
