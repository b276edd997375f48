//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const cdevConsumer = "relaynode"

// CdevGPIO drives a group of lines through the Linux GPIO character device.
// All lines are updated in a single request, so a word change is applied
// atomically across relays.
type CdevGPIO struct {
	chip  string
	lines *gpiocdev.Lines
	n     int
}

// OpenCdevGPIO requests the given line offsets on chip as outputs, initially
// high so active-low relays stay released until the first write.
func OpenCdevGPIO(chip string, offsets []int) (Transport, error) {
	if len(offsets) == 0 || len(offsets) > 8 {
		return nil, fmt.Errorf("cdev gpio: need 1..8 lines, got %d", len(offsets))
	}

	initial := make([]int, len(offsets))
	for i := range initial {
		initial[i] = 1
	}

	lines, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.WithConsumer(cdevConsumer),
		gpiocdev.AsOutput(initial...))
	if err != nil {
		return nil, fmt.Errorf("cdev gpio: request lines on %s: %w", chip, err)
	}

	return &CdevGPIO{chip: chip, lines: lines, n: len(offsets)}, nil
}

// Name returns the chip name.
func (g *CdevGPIO) Name() string { return g.chip }

// Send sets every line from the first byte of data.
func (g *CdevGPIO) Send(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cdev gpio: empty write")
	}
	values := make([]int, g.n)
	for i := range values {
		if wordBit(data[0], i) {
			values[i] = 1
		}
	}
	if err := g.lines.SetValues(values); err != nil {
		return fmt.Errorf("cdev gpio: set values on %s: %w", g.chip, err)
	}
	return nil
}

// Receive reads every line into a single word.
func (g *CdevGPIO) Receive(length int) ([]byte, error) {
	if length != 1 {
		return nil, fmt.Errorf("cdev gpio: can only read 1 byte, asked for %d", length)
	}
	values := make([]int, g.n)
	if err := g.lines.Values(values); err != nil {
		return nil, fmt.Errorf("cdev gpio: read values on %s: %w", g.chip, err)
	}
	var word byte
	for i, v := range values {
		if v != 0 {
			word |= 1 << uint(i)
		}
	}
	return []byte{word}, nil
}

// Close releases the line request.
func (g *CdevGPIO) Close() error {
	return g.lines.Close()
}
