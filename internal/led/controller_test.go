package led

import (
	"os"
	"path/filepath"
	"testing"
)

func newLEDDir(t *testing.T, name string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"trigger", "brightness"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfsController(t *testing.T) {
	tests := []struct {
		pattern        Pattern
		wantTrigger    string
		wantBrightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternOff, "none", "0"},
		{PatternBlink, "heartbeat", "x"},
	}

	for _, tt := range tests {
		t.Run(string(tt.pattern), func(t *testing.T) {
			root := newLEDDir(t, "ACT")
			ctrl := newSysfs(root, "ACT")

			if err := ctrl.Set(tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if got := readFile(t, filepath.Join(root, "ACT", "trigger")); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readFile(t, filepath.Join(root, "ACT", "brightness")); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_Errors(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), "missing")
	if err := ctrl.Set(PatternSolid); err == nil {
		t.Error("expected error for missing LED")
	}

	root := newLEDDir(t, "ACT")
	if err := newSysfs(root, "ACT").Set("rainbow"); err == nil {
		t.Error("expected error for unknown pattern")
	}
}

func TestNewController(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name  string
		board string
		want  string
	}{
		{Disabled, "Raspberry Pi 4 Model B Rev 1.4", "none"},
		{"", "Raspberry Pi 4 Model B Rev 1.4", "none"},
		{Auto, "Raspberry Pi 4 Model B Rev 1.4", "ACT"},
		{Auto, "FriendlyElec NanoPC-T6", "sys_led"},
		{Auto, "unknown", "none"},
		{"led0", "unknown", "led0"},
	}

	for _, tt := range tests {
		if got := newController(tt.name, tt.board, root, nil).Name(); got != tt.want {
			t.Errorf("newController(%q, %q) = %q, want %q", tt.name, tt.board, got, tt.want)
		}
	}

	if err := newController(Disabled, "", root, nil).Set(PatternBlink); err != nil {
		t.Errorf("noop Set() error = %v", err)
	}
}

func TestDetectBoard(t *testing.T) {
	if detectBoard() == "" {
		t.Error("detectBoard() returned empty string")
	}
}
