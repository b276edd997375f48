package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/relaynode/internal/hardware"
	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/metrics"
)

// State is the software view of one relay.
type State struct {
	Enabled bool `json:"enabled"`
}

// Change describes one relay whose value changed.
type Change struct {
	ID      ID
	Key     string
	Enabled bool
}

// Fault describes a failed hardware write.
type Fault struct {
	Transport string
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger overrides the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver registers a callback for relay changes. Callbacks run after
// the controller lock is released, in ordinal order.
func WithObserver(fn func(Change)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithFaultObserver registers a callback for failed hardware writes.
// Callbacks run with the controller lock held and must not call back into it.
func WithFaultObserver(fn func(Fault)) Option {
	return func(c *Controller) {
		c.faultObservers = append(c.faultObservers, fn)
	}
}

// Controller maps relays to control words and keeps the hardware in step
// with the software state. One mutex covers the read, compare, update and
// write of every operation, so no two callers can interleave a word.
type Controller struct {
	layout *Layout
	logger *slog.Logger

	mu         sync.Mutex
	states     []State
	transports []hardware.Transport
	written    []Word // last word successfully sent per transport
	resync     bool   // a write failed; the next pass must be forced
	passes     uint64
	closed     bool

	observers      []func(Change)
	faultObservers []func(Fault)
}

// New takes ownership of one transport per layout word, disables every relay
// and forces a write to every transport so the hardware matches the
// software even if it powered up in an unknown configuration.
func New(layout *Layout, transports []hardware.Transport, opts ...Option) (*Controller, error) {
	if len(transports) != layout.Words() {
		return nil, fmt.Errorf("layout %s needs %d transports, got %d",
			layout.Name, layout.Words(), len(transports))
	}

	c := &Controller{
		layout:     layout,
		logger:     logging.GetLogger("relay"),
		states:     make([]State, layout.Len()),
		transports: transports,
		written:    make([]Word, len(transports)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	_, err := c.sync(true)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("initial hardware sync: %w", err)
	}

	for _, id := range layout.IDs() {
		metrics.SetRelayEnabled(layout.Key(id), false)
	}
	c.logger.Info("Relay controller ready",
		"layout", layout.Name,
		"relays", layout.Len(),
		"transports", len(transports))
	return c, nil
}

// Layout returns the relay layout.
func (c *Controller) Layout() *Layout { return c.layout }

// GetState returns the state of id.
func (c *Controller) GetState(id ID) (State, error) {
	if !c.layout.Valid(id) {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownRelay, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id], nil
}

// States returns a snapshot of every relay in ordinal order.
func (c *Controller) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.states...)
}

// SetState switches one relay. Setting a relay to its current value does
// not touch the hardware.
func (c *Controller) SetState(id ID, enabled bool) error {
	if !c.layout.Valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownRelay, id)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.states[id].Enabled == enabled {
		c.mu.Unlock()
		return nil
	}

	previous := append([]State(nil), c.states...)
	c.states[id].Enabled = enabled
	changes, err := c.commit(previous)
	c.mu.Unlock()

	c.publish(changes)
	return err
}

// SetAllStates switches every relay with a single synchronization pass.
func (c *Controller) SetAllStates(enabled bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	previous := append([]State(nil), c.states...)
	for i := range c.states {
		c.states[i].Enabled = enabled
	}
	changes, err := c.commit(previous)
	c.mu.Unlock()

	c.publish(changes)
	return err
}

// Readback reads the current word from every transport.
func (c *Controller) Readback() ([]Word, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	words := make([]Word, len(c.transports))
	for i, t := range c.transports {
		data, err := t.Receive(1)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrHardware, t.Name(), err)
		}
		words[i] = Word(data[0])
	}
	return words, nil
}

// Written returns the last word sent to every transport.
func (c *Controller) Written() []Word {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Word(nil), c.written...)
}

// TransportNames returns the transport names in word order.
func (c *Controller) TransportNames() []string {
	names := make([]string, len(c.transports))
	for i, t := range c.transports {
		names[i] = t.Name()
	}
	return names
}

// Close releases every relay, then closes the transports.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	var changes []Change
	for i := range c.states {
		if c.states[i].Enabled {
			c.states[i].Enabled = false
			changes = append(changes, Change{ID: ID(i), Key: c.layout.Key(ID(i))})
		}
	}
	_, syncErr := c.sync(true)
	c.closed = true
	closeErr := hardware.CloseAll(c.transports)
	c.mu.Unlock()

	c.publish(changes)
	c.logger.Info("Relay controller closed")
	return errors.Join(syncErr, closeErr)
}

// commit synchronizes the hardware after the states were changed from
// previous. Relays whose word could not be written get their previous state
// back, so the state always matches the last word each transport accepted.
// It returns the changes that took effect. Callers must hold c.mu.
func (c *Controller) commit(previous []State) ([]Change, error) {
	failed, err := c.sync(false)

	var changes []Change
	for i := range c.states {
		id := ID(i)
		if failed[WordIndex(id)] {
			c.states[i] = previous[i]
		}
		if c.states[i] != previous[i] {
			changes = append(changes, Change{ID: id, Key: c.layout.Key(id), Enabled: c.states[i].Enabled})
		}
	}
	return changes, err
}

// sync writes the words derived from the current state. Transports whose
// word is unchanged are skipped unless force is set or a previous pass
// failed. Every transport is attempted even after a failure; failed[i]
// reports whether transport i rejected its word. Callers must hold c.mu.
func (c *Controller) sync(force bool) ([]bool, error) {
	force = force || c.resync
	c.passes++

	failed := make([]bool, len(c.transports))
	var errs []error
	for i, w := range Encode(c.states) {
		if !force && c.written[i] == w {
			continue
		}
		t := c.transports[i]
		if err := t.Send([]byte{byte(w)}); err != nil {
			failed[i] = true
			metrics.IncHardwareFaults(t.Name())
			c.logger.Error("Hardware write failed", "transport", t.Name(), "word", fmt.Sprintf("%#04x", byte(w)), "error", err)
			c.fault(Fault{Transport: t.Name(), Err: err})
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrHardware, t.Name(), err))
			continue
		}
		c.written[i] = w
		metrics.IncHardwareWrites(t.Name())
		c.logger.Debug("Hardware word written", "transport", t.Name(), "word", fmt.Sprintf("%#04x", byte(w)), "forced", force)
	}

	c.resync = len(errs) > 0
	return failed, errors.Join(errs...)
}

func (c *Controller) fault(f Fault) {
	for _, fn := range c.faultObservers {
		fn(f)
	}
}

func (c *Controller) publish(changes []Change) {
	for _, ch := range changes {
		metrics.SetRelayEnabled(ch.Key, ch.Enabled)
		c.logger.Info("Relay switched", "relay", ch.Key, "enabled", ch.Enabled)
		for _, fn := range c.observers {
			fn(ch)
		}
	}
}
