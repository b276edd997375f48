package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	ServerPort    string   `help:"Listen address" toml:"server.port" env:"SERVER_PORT"`
	ServerTimeout string   `help:"Connection deadline" toml:"server.timeout" env:"SERVER_TIMEOUT"`
	MetricsOn     bool     `toml:"metrics.enabled" env:"METRICS_ENABLED"`
	Retries       int      `toml:"hardware.retries" env:"HARDWARE_RETRIES"`
	Addresses     []string `help:"Expander addresses" toml:"hardware.addresses" env:"HARDWARE_ADDRESSES"`
	Untagged      string
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleTOML = `
[server]
port = ":8080"
timeout = "5s"

[metrics]
enabled = true

[hardware]
retries = 3
addresses = ["0x20", "0x21"]
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeFile(t, sampleTOML), Untagged: "kept"}

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := &testOptions{
		Config:        opts.Config,
		ServerPort:    ":8080",
		ServerTimeout: "5s",
		MetricsOn:     true,
		Retries:       3,
		Addresses:     []string{"0x20", "0x21"},
		Untagged:      "kept",
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("got %+v, want %+v", opts, want)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("RELAYNODE_SERVER_PORT", ":9000")
	t.Setenv("RELAYNODE_METRICS_ENABLED", "false")
	t.Setenv("RELAYNODE_HARDWARE_ADDRESSES", "0x24, 0x25,")

	opts := &testOptions{Config: writeFile(t, sampleTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.ServerPort != ":9000" {
		t.Errorf("ServerPort = %q, want :9000", opts.ServerPort)
	}
	if opts.MetricsOn {
		t.Error("MetricsOn should be overridden to false")
	}
	if !reflect.DeepEqual(opts.Addresses, []string{"0x24", "0x25"}) {
		t.Errorf("Addresses = %v", opts.Addresses)
	}
	if opts.ServerTimeout != "5s" {
		t.Errorf("ServerTimeout = %q, file value should remain", opts.ServerTimeout)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	t.Setenv("RELAYNODE_SERVER_PORT", ":9000")

	opts := &testOptions{Config: writeFile(t, sampleTOML)}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.ServerPort, "server-port", ":80", "")
	if err := cmd.Flags().Set("server-port", ":7000"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.ServerPort != ":7000" {
		t.Errorf("ServerPort = %q, CLI value should win", opts.ServerPort)
	}
	if opts.Retries != 3 {
		t.Errorf("Retries = %d, want 3 from file", opts.Retries)
	}
}

func TestLoadConfigMissingFileKeepsDefaults(t *testing.T) {
	opts := &testOptions{
		Config:     filepath.Join(t.TempDir(), "absent.toml"),
		ServerPort: ":80",
	}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.ServerPort != ":80" {
		t.Errorf("ServerPort = %q, want default", opts.ServerPort)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		opts := &testOptions{Config: writeFile(t, "[server\nport = 1")}
		if err := LoadConfig(opts, nil); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("wrong type in file", func(t *testing.T) {
		opts := &testOptions{Config: writeFile(t, "[server]\nport = 8080\n")}
		err := LoadConfig(opts, nil)
		if err == nil || !strings.Contains(err.Error(), "server.port") {
			t.Errorf("error = %v, want mention of server.port", err)
		}
	})

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("RELAYNODE_HARDWARE_RETRIES", "many")
		err := LoadConfig(&testOptions{}, nil)
		if err == nil || !strings.Contains(err.Error(), "RELAYNODE_HARDWARE_RETRIES") {
			t.Errorf("error = %v, want mention of the variable", err)
		}
	})

	t.Run("not a pointer", func(t *testing.T) {
		if err := LoadConfig(testOptions{}, nil); err == nil {
			t.Error("expected error for non-pointer")
		}
	})
}

func TestLoadConfigArrayIntoStringField(t *testing.T) {
	type flatOptions struct {
		Config    string
		Addresses string `toml:"hardware.i2c_addresses"`
	}

	opts := &flatOptions{Config: writeFile(t, "[hardware]\ni2c_addresses = [\"0x20\", \"0x21\"]\n")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Addresses != "0x20,0x21" {
		t.Errorf("Addresses = %q, want 0x20,0x21", opts.Addresses)
	}

	opts = &flatOptions{Config: writeFile(t, "[hardware]\ni2c_addresses = [32, 33]\n")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("expected error for integer elements")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":             "port",
		"ServerPort":       "server-port",
		"LoggingLevel":     "logging-level",
		"HardwareGPIOChip": "hardware-gpio-chip",
		"AdminPort":        "admin-port",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, `
[logging]
level = "debug"
format = "json"
server = "warn"
relay = "error"
`)

	cfg, err := LoadLoggingConfig(path)
	if err != nil {
		t.Fatalf("LoadLoggingConfig() error = %v", err)
	}
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"server": "warn", "relay": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg, err := LoadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadLoggingConfig() error = %v", err)
	}
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("got %+v, want info/text defaults", cfg)
	}

	if _, err := LoadLoggingConfig(writeFile(t, "not = [toml")); err == nil {
		t.Error("expected parse error")
	}
}

func TestGenerateSampleRoundTrip(t *testing.T) {
	defaults := testOptions{
		ServerPort:    ":80",
		ServerTimeout: "10s",
		MetricsOn:     true,
		Retries:       2,
		Addresses:     []string{"0x20", "0x21"},
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := GenerateSample(path, &defaults, false); err != nil {
		t.Fatalf("GenerateSample() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"[server]", "[hardware]", "[metrics]", "# Listen address"} {
		if !strings.Contains(text, want) {
			t.Errorf("sample lacks %q:\n%s", want, text)
		}
	}

	loaded := &testOptions{Config: path}
	if err := LoadConfig(loaded, nil); err != nil {
		t.Fatalf("LoadConfig(sample) error = %v", err)
	}
	loaded.Config = ""
	if !reflect.DeepEqual(*loaded, defaults) {
		t.Errorf("round trip = %+v, want %+v", *loaded, defaults)
	}

	if err := GenerateSample(path, &defaults, false); !errors.Is(err, ErrExists) {
		t.Errorf("second GenerateSample() error = %v, want ErrExists", err)
	}
	if err := GenerateSample(path, &defaults, true); err != nil {
		t.Errorf("GenerateSample(overwrite) error = %v", err)
	}
}
