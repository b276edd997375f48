//go:build !linux

package hardware

import "fmt"

// OpenCdevGPIO is only available on Linux.
func OpenCdevGPIO(chip string, _ []int) (Transport, error) {
	return nil, fmt.Errorf("%w: GPIO character device %s requires linux", ErrUnsupported, chip)
}
