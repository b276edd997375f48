package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/relaynode/cmd"
	"github.com/smazurov/relaynode/internal/api"
	"github.com/smazurov/relaynode/internal/config"
	"github.com/smazurov/relaynode/internal/events"
	"github.com/smazurov/relaynode/internal/hardware"
	"github.com/smazurov/relaynode/internal/led"
	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/metrics"
	"github.com/smazurov/relaynode/internal/metrics/collectors"
	"github.com/smazurov/relaynode/internal/relay"
	"github.com/smazurov/relaynode/internal/server"
	"github.com/smazurov/relaynode/internal/systemd"
	"github.com/smazurov/relaynode/internal/version"
)

const shutdownTimeout = 15 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Relay API
	ServerPort    string `help:"Relay API listen address" short:"p" default:":80" toml:"server.port" env:"SERVER_PORT"`
	ServerTimeout string `help:"Deadline for a whole connection" default:"10s" toml:"server.timeout" env:"SERVER_TIMEOUT"`

	// Admin API, empty disables it
	AdminPort string `help:"Admin API listen address (empty disables)" default:":8091" toml:"admin.port" env:"ADMIN_PORT"`

	// Relay wiring
	RelaysLayout      string `help:"Relay layout (gpio, expander)" default:"gpio" toml:"relays.layout" env:"RELAYS_LAYOUT"`
	HardwareDriver    string `help:"Hardware driver (periph, cdev, sim)" default:"periph" toml:"hardware.driver" env:"HARDWARE_DRIVER"`
	HardwareChip      string `help:"GPIO character device used by the cdev driver" default:"gpiochip0" toml:"hardware.gpio_chip" env:"HARDWARE_GPIO_CHIP"`
	HardwareBus       string `help:"I2C bus of the expanders" default:"/dev/i2c-1" toml:"hardware.i2c_bus" env:"HARDWARE_I2C_BUS"`
	HardwareAddresses string `help:"Comma-separated expander addresses, one per control word" default:"0x20,0x21" toml:"hardware.i2c_addresses" env:"HARDWARE_I2C_ADDRESSES"`

	MetricsEnabled          bool   `help:"Expose Prometheus metrics on the admin API" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MetricsReadbackInterval string `help:"How often to compare hardware readback with the last write (0 disables)" default:"30s" toml:"metrics.readback_interval" env:"METRICS_READBACK_INTERVAL"`

	StatusLED string `help:"Status LED (auto, none, or a /sys/class/leds name)" default:"auto" toml:"status.led" env:"STATUS_LED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingServer   string `help:"Relay API logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingRelay    string `help:"Relay controller logging level" default:"info" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingHardware string `help:"Hardware logging level" default:"info" toml:"logging.hardware" env:"LOGGING_HARDWARE"`
	LoggingAPI      string `help:"Admin API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig   string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"server":   o.LoggingServer,
			"relay":    o.LoggingRelay,
			"hardware": o.LoggingHardware,
			"api":      o.LoggingAPI,
			"config":   o.LoggingConfig,
		},
	}
}

// hardwareConfig resolves the wiring of layout from the options.
func (o *Options) hardwareConfig(layout *relay.Layout) (hardware.Config, error) {
	cfg := hardware.Config{
		Kind:   layout.Kind,
		Driver: o.HardwareDriver,
		Pins:   layout.Pins(),
		Chip:   o.HardwareChip,
		Bus:    o.HardwareBus,
	}
	if layout.Kind != hardware.KindExpander {
		return cfg, nil
	}

	for _, part := range strings.Split(o.HardwareAddresses, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := strconv.ParseUint(part, 0, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid expander address %q: %w", part, err)
		}
		cfg.Addresses = append(cfg.Addresses, uint16(addr))
	}
	if len(cfg.Addresses) != layout.Words() {
		return cfg, fmt.Errorf("layout %s needs %d expander addresses, got %d",
			layout.Name, layout.Words(), len(cfg.Addresses))
	}
	return cfg, nil
}

func main() {
	var cli humacli.CLI
	var options *Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		options = opts

		// Load configuration automatically
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "error", configErr)
		}

		ctx, cancel := context.WithCancel(context.Background())
		finished := make(chan struct{})

		hooks.OnStart(func() {
			defer close(finished)
			logger.Info("Starting relaynode", "version", version.String())
			if err := run(ctx, opts, logger); err != nil {
				logger.Error("relaynode failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-finished:
			case <-time.After(shutdownTimeout):
				logger.Warn("Shutdown timed out", "timeout", shutdownTimeout)
			}
		})
	})

	cli.Root().Use = "relaynode"
	cli.Root().Version = version.Version

	cli.Root().AddCommand(cmd.CreateGenerateConfigCmd(func() any { return options }))
	cli.Root().AddCommand(cmd.CreateRelaysCmd(
		func() string { return options.RelaysLayout },
		func(layout *relay.Layout) (hardware.Config, error) { return options.hardwareConfig(layout) },
	))
	cli.Root().AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})

	// Run the CLI
	cli.Run()
}

// run opens the hardware and serves until ctx is cancelled. The relays are
// disabled again before it returns.
func run(ctx context.Context, opts *Options, logger *slog.Logger) error {
	timeout, err := time.ParseDuration(opts.ServerTimeout)
	if err != nil {
		return fmt.Errorf("invalid server.timeout %q: %w", opts.ServerTimeout, err)
	}

	readbackInterval, err := time.ParseDuration(opts.MetricsReadbackInterval)
	if err != nil {
		return fmt.Errorf("invalid metrics.readback_interval %q: %w", opts.MetricsReadbackInterval, err)
	}

	layout, err := relay.LayoutByName(opts.RelaysLayout)
	if err != nil {
		return err
	}
	hwConfig, err := opts.hardwareConfig(layout)
	if err != nil {
		return err
	}
	transports, err := hardware.Open(hwConfig, logging.GetLogger("hardware"))
	if err != nil {
		return fmt.Errorf("open relay hardware: %w", err)
	}

	// Create event bus for in-process event handling
	eventBus := events.New()
	defer eventBus.Close()

	var logSeq atomic.Uint64
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(api.LogEvent(logSeq.Add(1), entry))
	})
	defer logging.SetLogCallback(nil)

	ctrl, err := relay.New(layout, transports,
		relay.WithObserver(func(ch relay.Change) {
			eventBus.Publish(events.RelayStateChangedEvent{
				RelayID:   ch.Key,
				Ordinal:   int(ch.ID),
				Enabled:   ch.Enabled,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}),
		relay.WithFaultObserver(func(f relay.Fault) {
			eventBus.Publish(events.HardwareFaultEvent{
				Transport: f.Transport,
				Error:     f.Err.Error(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}),
	)
	if err != nil {
		return errors.Join(err, hardware.CloseAll(transports))
	}
	defer func() {
		if closeErr := ctrl.Close(); closeErr != nil {
			logger.Error("Failed to release relays", "error", closeErr)
		}
	}()

	ledLogger := logging.GetLogger("led")
	statusLED := led.NewManager(led.New(opts.StatusLED, ledLogger), eventBus, ledLogger)
	statusLED.Start(nil)
	defer statusLED.Stop()

	// Bind both sockets before reporting ready
	relayLn, err := net.Listen("tcp", opts.ServerPort)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.ServerPort, err)
	}

	var admin *api.Server
	var adminLn net.Listener
	if opts.AdminPort != "" {
		adminLn, err = net.Listen("tcp", opts.AdminPort)
		if err != nil {
			relayLn.Close()
			return fmt.Errorf("listen on %s: %w", opts.AdminPort, err)
		}
		apiOpts := &api.Options{
			Relays:   ctrl,
			EventBus: eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		admin = api.NewServer(apiOpts)
	}

	listener := server.NewListener(server.Options{
		Relays:  ctrl,
		Timeout: timeout,
	})
	notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Serve(gctx, relayLn)
	})
	if admin != nil {
		g.Go(func() error {
			return admin.Serve(adminLn)
		})
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return admin.Stop(stopCtx)
		})
	}
	g.Go(func() error {
		return notifier.RunWatchdog(gctx)
	})
	if readbackInterval > 0 {
		g.Go(func() error {
			return collectors.NewReadbackCollector(ctrl, readbackInterval).Run(gctx)
		})
	}

	watcher := config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, logging.GetLogger("config"))
	watcher.OnReload(func(cfg logging.Config) {
		logging.Reconfigure(cfg)
		eventBus.Publish(events.ConfigReloadedEvent{
			Path:      opts.Config,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
	if watchErr := watcher.Start(gctx); watchErr != nil {
		logger.Warn("Config hot reload disabled", "error", watchErr)
	} else {
		defer watcher.Stop()
	}

	logger.Info("Relay API listening",
		"addr", relayLn.Addr().String(),
		"layout", layout.Name,
		"timeout", timeout)
	if notifyErr := notifier.Ready(); notifyErr != nil {
		logger.Warn("Failed to notify systemd", "error", notifyErr)
	}
	_ = notifier.Status("Serving %d relays on %s", layout.Len(), relayLn.Addr())

	err = g.Wait()
	_ = notifier.Stopping()
	return err
}
