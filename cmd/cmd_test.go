package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/relaynode/internal/hardware"
	"github.com/smazurov/relaynode/internal/relay"
)

type sampleOptions struct {
	ServerPort   string `help:"Relay API listen address" toml:"server.port"`
	RelaysLayout string `help:"Relay layout" toml:"relays.layout"`
}

func simResolver(layout *relay.Layout) (hardware.Config, error) {
	return hardware.Config{
		Kind:      layout.Kind,
		Driver:    hardware.DriverSim,
		Pins:      layout.Pins(),
		Addresses: []uint16{0x20, 0x21},
	}, nil
}

func TestRelaysCommand(t *testing.T) {
	cmd := CreateRelaysCmd(func() string { return "gpio" }, simResolver)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	text := out.String()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 9 {
		t.Fatalf("got %d lines, want header + 8:\n%s", len(lines), text)
	}
	if !strings.Contains(lines[0], "PIN") || strings.Contains(lines[0], "ENABLED") {
		t.Errorf("header = %q", lines[0])
	}
	if fields := strings.Fields(lines[8]); fields[1] != "free" || fields[len(fields)-1] != "7" {
		t.Errorf("last row = %q", lines[8])
	}
}

func TestRelaysCommandReadback(t *testing.T) {
	cmd := CreateRelaysCmd(func() string { return "expander" }, simResolver)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--readback"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "ENABLED") {
		t.Errorf("no ENABLED column:\n%s", text)
	}
	if strings.Contains(text, "true") {
		t.Errorf("simulated hardware powers up released:\n%s", text)
	}
	if !strings.Contains(text, "sixteen") || !strings.Contains(text, "0x80") {
		t.Errorf("missing last relay row:\n%s", text)
	}
}

func TestRelaysCommandErrors(t *testing.T) {
	cmd := CreateRelaysCmd(func() string { return "nine-relay" }, simResolver)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("expected unknown layout error")
	}

	failing := func(*relay.Layout) (hardware.Config, error) {
		return hardware.Config{}, errors.New("bad address")
	}
	cmd = CreateRelaysCmd(func() string { return "gpio" }, failing)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-r"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected resolver error")
	}
}

func TestGenerateConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaynode.toml")
	opts := &sampleOptions{ServerPort: ":80", RelaysLayout: "gpio"}

	cmd := CreateGenerateConfigCmd(func() any { return opts })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[relays]") || !strings.Contains(string(data), "layout = ") {
		t.Errorf("sample:\n%s", data)
	}

	cmd = CreateGenerateConfigCmd(func() any { return opts })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", path})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error when the file exists")
	}

	cmd = CreateGenerateConfigCmd(func() any { return opts })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", path, "--force"})
	if err := cmd.Execute(); err != nil {
		t.Errorf("--force Execute() error = %v", err)
	}
}
