package led

import (
	"os"
	"strings"

	"github.com/smazurov/relaynode/internal/logging"
)

const (
	deviceTreeModelPath = "/proc/device-tree/model"

	// Auto picks the LED from the board model.
	Auto = "auto"
	// Disabled turns status LED control off.
	Disabled = "none"
)

// boardLEDs maps a device tree model substring to its status LED.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"Raspberry Pi", "ACT"},
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
}

// New returns a controller for the named sysfs LED. Auto detects the board;
// Disabled, or an unknown board, yields a controller that does nothing.
func New(name string, logger logging.Logger) Controller {
	return newController(name, detectBoard(), sysfsLEDPath, logger)
}

func newController(name, board, root string, logger logging.Logger) Controller {
	switch name {
	case "", Disabled:
		return &noop{logger: logger}
	case Auto:
		for _, b := range boardLEDs {
			if strings.Contains(board, b.model) {
				if logger != nil {
					logger.Info("Using board status LED", "board_model", board, "led", b.led)
				}
				return newSysfs(root, b.led)
			}
		}
		if logger != nil {
			logger.Info("No status LED known for board", "board_model", board)
		}
		return &noop{logger: logger}
	default:
		return newSysfs(root, name)
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
