package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/relaynode/internal/events"
)

// Manager keeps the status LED in step with the relays: blinking after a
// hardware fault, solid while any relay is enabled, off otherwise. A relay
// change after a fault means a write went through, so it clears the fault.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	mu      sync.Mutex
	enabled map[string]bool
	faulted bool
	current Pattern
	stopped bool
	unsubs  []func()
}

// NewManager creates a manager. Call Start to begin following events.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		enabled:    make(map[string]bool),
	}
}

// Start seeds the manager with the relays enabled right now and subscribes
// to relay and fault events.
func (m *Manager) Start(enabled []string) {
	m.mu.Lock()
	for _, id := range enabled {
		m.enabled[id] = true
	}
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(m.handleStateChanged),
		m.eventBus.Subscribe(m.handleFault),
	)
	m.update()
	m.mu.Unlock()

	m.logger.Info("Status LED manager started", "led", m.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	m.mu.Lock()
	m.stopped = true
	m.set(PatternOff)
	m.mu.Unlock()
	m.logger.Info("Status LED manager stopped")
}

// Pattern returns the pattern last applied.
func (m *Manager) Pattern() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) handleStateChanged(e events.RelayStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Enabled {
		m.enabled[e.RelayID] = true
	} else {
		delete(m.enabled, e.RelayID)
	}
	m.faulted = false
	m.update()
}

func (m *Manager) handleFault(e events.HardwareFaultEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("Hardware fault, blinking status LED", "transport", e.Transport)
	m.faulted = true
	m.update()
}

// update must be called with mu held.
func (m *Manager) update() {
	switch {
	case m.stopped:
		m.set(PatternOff)
	case m.faulted:
		m.set(PatternBlink)
	case len(m.enabled) > 0:
		m.set(PatternSolid)
	default:
		m.set(PatternOff)
	}
}

func (m *Manager) set(p Pattern) {
	if p == m.current {
		return
	}
	if err := m.controller.Set(p); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", p, "error", err)
		return
	}
	m.current = p
}
