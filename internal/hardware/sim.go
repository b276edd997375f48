package hardware

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by a transport used after Close.
var ErrClosed = errors.New("transport closed")

// Simulated is an in-memory Transport. It remembers every word sent so that
// tests and development machines can run without relay hardware.
type Simulated struct {
	name  string
	lines int

	mu      sync.Mutex
	current byte
	sent    [][]byte
	failErr error
	closed  bool
}

// NewSimulated creates a simulated device with the given number of lines.
// Lines power up high, which leaves active-low relays released.
func NewSimulated(name string, lines int) *Simulated {
	return &Simulated{
		name:    name,
		lines:   lines,
		current: 0xFF,
	}
}

// Name returns the device name.
func (s *Simulated) Name() string { return s.name }

// Send records the data and latches the last byte as the current word.
func (s *Simulated) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.failErr != nil {
		return s.failErr
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: empty write", s.name)
	}

	s.sent = append(s.sent, append([]byte(nil), data...))
	s.current = data[len(data)-1]
	return nil
}

// Receive returns the current word repeated length times.
func (s *Simulated) Receive(length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = s.current
	}
	return buf, nil
}

// Close marks the device closed.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailWith makes subsequent sends fail with err. Pass nil to recover.
func (s *Simulated) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Writes returns a copy of every payload sent so far.
func (s *Simulated) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.sent))
	for i, w := range s.sent {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WriteCount returns the number of successful sends.
func (s *Simulated) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// Current returns the last latched word.
func (s *Simulated) Current() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Closed reports whether Close has been called.
func (s *Simulated) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
