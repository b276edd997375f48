package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/relaynode/internal/metrics"
)

var errRequestTooLarge = errors.New("request exceeds read buffer")

// limitedReader fails with errRequestTooLarge once n bytes have been read,
// so neither a long head nor a long body can grow past the buffer.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, errRequestTooLarge
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// connState is the lifecycle position of one connection.
type connState int

const (
	stateAccepted connState = iota
	stateReading
	stateRouting
	stateWriting
	stateClosed
	stateTimedOut
)

func (s connState) String() string {
	switch s {
	case stateAccepted:
		return "accepted"
	case stateReading:
		return "reading"
	case stateRouting:
		return "routing"
	case stateWriting:
		return "writing"
	case stateClosed:
		return "closed"
	case stateTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// connection serves exactly one request on one socket. Either the response
// is written or the deadline closes the socket, never both.
type connection struct {
	conn    net.Conn
	router  *router
	timeout time.Duration
	bufSize int
	logger  *slog.Logger
	started time.Time

	mu      sync.Mutex
	state   connState
	expired bool // deadline fired while routing
	timer   *time.Timer
}

func newConnection(conn net.Conn, r *router, timeout time.Duration, bufSize int, logger *slog.Logger) *connection {
	return &connection{
		conn:    conn,
		router:  r,
		timeout: timeout,
		bufSize: bufSize,
		logger: logger.With(
			"conn_id", uuid.NewString(),
			"remote_addr", conn.RemoteAddr().String(),
		),
		state: stateAccepted,
	}
}

// serve runs the connection to completion on the calling goroutine.
func (c *connection) serve() {
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	c.started = time.Now()
	c.mu.Lock()
	c.timer = time.AfterFunc(c.timeout, c.expire)
	c.mu.Unlock()

	if !c.transition(stateAccepted, stateReading) {
		return
	}

	req, body, err := c.read()
	if err != nil {
		if c.transition(stateReading, stateClosed) {
			c.stopTimer()
			_ = c.conn.Close()
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("Closing connection without response", "error", err)
			}
		}
		return
	}

	if !c.transition(stateReading, stateRouting) {
		return
	}

	target := ParseTarget(req.RequestURI)
	resp := c.router.route(req.Method, target, body)

	if !c.beginWriting() {
		return
	}

	err = c.write(req, resp)
	c.finish(req, target, resp, err)
}

// transition moves from one state to another if the connection is still in
// the expected state.
func (c *connection) transition(from, to connState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// beginWriting hands off from Routing to Writing, honouring a deadline that
// fired while the request was being routed.
func (c *connection) beginWriting() bool {
	c.mu.Lock()
	if c.state != stateRouting {
		c.mu.Unlock()
		return false
	}
	if c.expired {
		c.state = stateTimedOut
		c.mu.Unlock()
		c.closeExpired(stateRouting)
		return false
	}
	c.state = stateWriting
	c.mu.Unlock()
	return true
}

// expire is the deadline callback.
func (c *connection) expire() {
	c.mu.Lock()
	switch c.state {
	case stateAccepted, stateReading, stateWriting:
		during := c.state
		c.state = stateTimedOut
		c.mu.Unlock()
		c.closeExpired(during)
	case stateRouting:
		c.expired = true
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

func (c *connection) closeExpired(during connState) {
	_ = c.conn.Close()
	metrics.IncConnectionTimeouts()
	c.logger.Warn("Connection timed out", "state", during.String(), "timeout", c.timeout)
}

func (c *connection) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// read parses one request. Head and body together are bounded by the
// buffer size.
func (c *connection) read() (*http.Request, []byte, error) {
	src := &limitedReader{r: c.conn, n: int64(c.bufSize)}
	req, err := http.ReadRequest(bufio.NewReaderSize(src, c.bufSize))
	if err != nil {
		return nil, nil, fmt.Errorf("read request: %w", err)
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return req, body, nil
}

func (c *connection) write(req *http.Request, resp *response) error {
	header := make(http.Header, 3)
	header.Set("Content-Type", resp.contentType)
	header.Set("Connection", "close")
	if resp.allow != "" {
		header.Set("Allow", resp.allow)
	}

	out := &http.Response{
		StatusCode:    resp.status,
		ProtoMajor:    req.ProtoMajor,
		ProtoMinor:    req.ProtoMinor,
		Header:        header,
		ContentLength: int64(len(resp.body)),
		Body:          io.NopCloser(bytes.NewReader(resp.body)),
		Close:         true,
		Request:       req,
	}

	w := bufio.NewWriter(c.conn)
	if err := out.Write(w); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

// finish shuts down the write half, cancels the deadline and closes.
func (c *connection) finish(req *http.Request, target Target, resp *response, writeErr error) {
	if writeErr == nil {
		if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}
	c.stopTimer()

	if !c.transition(stateWriting, stateClosed) {
		return
	}
	_ = c.conn.Close()

	if writeErr != nil {
		c.logger.Warn("Failed to write response", "method", req.Method, "path", target.Resource, "error", writeErr)
		return
	}

	metrics.ObserveResponse(req.Method, resp.status)
	attrs := []any{
		"method", req.Method,
		"path", target.Resource,
		"status", resp.status,
		"duration", time.Since(c.started),
	}
	switch {
	case resp.status >= 500:
		c.logger.Error("Request served", attrs...)
	case resp.status >= 400:
		c.logger.Warn("Request served", attrs...)
	default:
		c.logger.Info("Request served", attrs...)
	}
}
