package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives an LED through the Linux LED class interface.
type sysfs struct {
	dir string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name)}
}

func (s *sysfs) Name() string { return filepath.Base(s.dir) }

// Set writes the trigger first, since changing the trigger resets brightness.
func (s *sysfs) Set(p Pattern) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("LED %s not available: %w", s.Name(), err)
	}

	trigger, brightness := "none", "0"
	switch p {
	case PatternOff:
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger, brightness = "heartbeat", ""
	default:
		return fmt.Errorf("unknown LED pattern %q", p)
	}

	if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	if brightness == "" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}
