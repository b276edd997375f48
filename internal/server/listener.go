package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/metrics"
)

const (
	// DefaultTimeout bounds the whole life of a connection.
	DefaultTimeout = 10 * time.Second
	// DefaultBufferSize bounds a whole request, head and body together.
	DefaultBufferSize = 8 * 1024

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Options configures a Listener.
type Options struct {
	Relays     RelayService
	Timeout    time.Duration
	BufferSize int
	Logger     *slog.Logger
}

// Listener accepts connections and serves each on its own goroutine.
type Listener struct {
	router  *router
	timeout time.Duration
	bufSize int
	logger  *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	stopped bool
	done    chan struct{} // closed when Serve returns
	conns   sync.WaitGroup
}

// NewListener creates a listener serving the given relays.
func NewListener(opts Options) *Listener {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("server")
	}
	return &Listener{
		router:  &router{relays: opts.Relays},
		timeout: opts.Timeout,
		bufSize: opts.BufferSize,
		logger:  opts.Logger,
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled or Stop is
// called.
func (l *Listener) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled or Stop is called. Accept
// errors are logged and retried with backoff. It returns after every
// in-flight connection has finished.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	l.ln = ln
	done := make(chan struct{})
	l.done = done
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer close(done)
	defer l.conns.Wait()

	l.logger.Info("Relay API listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.closing(ctx, err) {
				l.logger.Info("Relay API stopped")
				return nil
			}

			backoff = nextBackoff(backoff)
			metrics.IncAcceptErrors()
			l.logger.Error("Accept failed", "error", err, "retry_in", backoff)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		l.conns.Add(1)
		go func() {
			defer l.conns.Done()
			newConnection(conn, l.router, l.timeout, l.bufSize, l.logger).serve()
		}()
	}
}

func (l *Listener) closing(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptBackoff
	}
	return min(prev*2, maxAcceptBackoff)
}

// Addr returns the bound address, or nil before Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Stop closes the listening socket and waits for in-flight connections.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.stopped || l.ln == nil {
		l.stopped = true
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	ln, done := l.ln, l.done
	l.mu.Unlock()

	err := ln.Close()
	<-done
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	return nil
}
