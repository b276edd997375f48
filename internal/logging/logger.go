package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 500

// Logger is satisfied by *slog.Logger. Packages that only emit records
// accept it instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] section of the configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// levelFor resolves the effective level of a module.
func (c Config) levelFor(module string) slog.Level {
	level, ok := ParseLevel(c.Level)
	if !ok {
		level = slog.LevelInfo
	}
	if override, exists := c.Modules[module]; exists {
		if parsed, ok := ParseLevel(override); ok {
			level = parsed
		}
	}
	return level
}

var (
	mu          sync.RWMutex
	config      = Config{Level: "info", Format: "text"}
	initialized bool
	loggers     = make(map[string]*slog.Logger)
	levels      = make(map[string]*slog.LevelVar)
	rootLevel   = &slog.LevelVar{}
	ring        = NewRingBuffer(defaultBufferSize)
	callback    LogCallback
)

// Initialize installs the configuration, rebuilds the handler chain of every
// module logger created so far and replaces the slog default logger.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	config = cfg
	initialized = true

	rootLevel.Set(cfg.levelFor(""))
	for module, levelVar := range levels {
		levelVar.Set(cfg.levelFor(module))
		loggers[module] = slog.New(newHandler(cfg.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(cfg.Format, rootLevel)))
}

// Reconfigure applies new levels without touching the handler chain. Loggers
// already handed out pick up the change immediately.
func Reconfigure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	config.Level = cfg.Level
	config.Modules = cfg.Modules

	rootLevel.Set(config.levelFor(""))
	for module, levelVar := range levels {
		levelVar.Set(config.levelFor(module))
	}
}

// GetLogger returns the logger of a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	logger, ok := loggers[module]
	mu.RUnlock()
	if ok {
		return logger
	}

	mu.Lock()
	defer mu.Unlock()

	if logger, ok := loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(config.levelFor(module))

	format := "text"
	if initialized {
		format = config.Format
	}

	logger = slog.New(newHandler(format, levelVar)).With("module", module)
	loggers[module] = logger
	levels[module] = levelVar
	return logger
}

// Level returns the current level of a module logger.
func Level(module string) slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	if levelVar, ok := levels[module]; ok {
		return levelVar.Level()
	}
	return config.levelFor(module)
}

// GetBuffer returns the ring buffer holding recent records.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return ring
}

// SetLogCallback registers a function called for every buffered record.
// It is how log entries reach the event bus without an import cycle.
func SetLogCallback(fn LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	callback = fn
}

func currentCallback() LogCallback {
	mu.RLock()
	defer mu.RUnlock()
	return callback
}

// newHandler builds stdout + journal + buffer. level is usually a
// *slog.LevelVar so it can change at runtime.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if stdoutAttached() {
		handlers = append(handlers, stdout)
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached is false when stdout is /dev/null, as under some unit files.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
