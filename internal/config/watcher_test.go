package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/relaynode/internal/logging"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWatcher(t *testing.T, path string, opts ...WatcherOption[logging.Config]) *Watcher[logging.Config] {
	t.Helper()
	opts = append([]WatcherOption[logging.Config]{WithDebounce[logging.Config](50 * time.Millisecond)}, opts...)
	return NewConfigWatcher(path, LoadLoggingConfig, quietLogger(), opts...)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")
	w := newWatcher(t, path)

	received := make(chan logging.Config, 4)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\nserver = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Level != "debug" || cfg.Modules["server"] != "warn" {
			t.Errorf("reloaded %+v", cfg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger(), WithDebounce[logging.Config](200*time.Millisecond))

	var count atomic.Int32
	last := make(chan logging.Config, 8)
	w.OnReload(func(cfg logging.Config) {
		count.Add(1)
		last <- cfg
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	for _, level := range []string{"debug", "warn", "error"} {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case cfg := <-last:
		if cfg.Level != "error" {
			t.Errorf("level = %q, want the final write", cfg.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	time.Sleep(400 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Errorf("handlers ran %d times, want 1", n)
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")
	w := newWatcher(t, path)

	received := make(chan logging.Config, 1)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		t.Errorf("unexpected reload %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherErrorHandlerAndUnsubscribe(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")

	errs := make(chan error, 1)
	w := newWatcher(t, path, WithErrorHandler[logging.Config](func(err error) { errs <- err }))

	called := make(chan struct{}, 1)
	unsub := w.OnReload(func(logging.Config) { called <- struct{}{} })
	unsub()

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(path, []byte("[logging\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("error handler got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for load error")
	}

	select {
	case <-called:
		t.Error("unsubscribed handler was called")
	default:
	}
}

func TestWatcherStopsWithContext(t *testing.T) {
	path := writeFile(t, "")
	w := newWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWatcherStartMissingDir(t *testing.T) {
	w := newWatcher(t, filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err := w.Start(context.Background()); err == nil {
		_ = w.Stop()
		t.Fatal("expected error for missing directory")
	}
}
