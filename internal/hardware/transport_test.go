package hardware

import (
	"errors"
	"log/slog"
	"os"
	"testing"
)

func TestOpen_Simulated(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tests := []struct {
		name      string
		cfg       Config
		wantCount int
		wantName  string
	}{
		{
			name:      "gpio",
			cfg:       Config{Kind: KindGPIO, Driver: DriverSim, Pins: []int{17, 27, 22, 10, 24, 25, 8, 7}},
			wantCount: 1,
			wantName:  "gpio",
		},
		{
			name:      "expanders",
			cfg:       Config{Kind: KindExpander, Driver: DriverSim, Addresses: []uint16{0x20, 0x21}},
			wantCount: 2,
			wantName:  "expander@0x20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transports, err := Open(tt.cfg, logger)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer CloseAll(transports)

			if len(transports) != tt.wantCount {
				t.Fatalf("Open() returned %d transports, want %d", len(transports), tt.wantCount)
			}
			if got := transports[0].Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestOpen_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown gpio driver", Config{Kind: KindGPIO, Driver: "wiringpi", Pins: []int{17}}},
		{"cdev expanders", Config{Kind: KindExpander, Driver: DriverCdev, Addresses: []uint16{0x20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg, nil)
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("Open() error = %v, want ErrUnsupported", err)
			}
		})
	}

	if _, err := Open(Config{Kind: "serial", Driver: DriverSim}, nil); err == nil {
		t.Error("Open() with unknown kind should return error")
	}
}

func TestSimulated_SendReceive(t *testing.T) {
	sim := NewSimulated("test", 8)

	word, err := sim.Receive(1)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if word[0] != 0xFF {
		t.Errorf("power-up word = %#x, want 0xff", word[0])
	}

	if err := sim.Send([]byte{0xA5}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := sim.Current(); got != 0xA5 {
		t.Errorf("Current() = %#x, want 0xa5", got)
	}
	if got := sim.WriteCount(); got != 1 {
		t.Errorf("WriteCount() = %d, want 1", got)
	}

	if err := sim.Send(nil); err == nil {
		t.Error("Send(nil) should return error")
	}
}

func TestSimulated_FailAndClose(t *testing.T) {
	sim := NewSimulated("test", 8)
	boom := errors.New("bus stuck")

	sim.FailWith(boom)
	if err := sim.Send([]byte{0x00}); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want %v", err, boom)
	}
	sim.FailWith(nil)
	if err := sim.Send([]byte{0x00}); err != nil {
		t.Errorf("Send() after recovery error = %v", err)
	}

	if err := CloseAll([]Transport{sim}); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}
	if !sim.Closed() {
		t.Error("Closed() = false after CloseAll")
	}
	if err := sim.Send([]byte{0x00}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after close error = %v, want ErrClosed", err)
	}
}

func TestWordBit(t *testing.T) {
	if !wordBit(0x80, 7) {
		t.Error("wordBit(0x80, 7) = false")
	}
	if wordBit(0x7F, 7) {
		t.Error("wordBit(0x7f, 7) = true")
	}
}

func TestDetectBoard(t *testing.T) {
	if model := detectBoard(); model == "" {
		t.Error("detectBoard() returned empty string")
	}
}
