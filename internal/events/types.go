package events

// Event type constants for kelindar/event.
const (
	TypeRelayStateChanged uint32 = iota + 1
	TypeHardwareFault
	TypeLogEntry
	TypeConfigReloaded
)

// Event is what kelindar/event dispatches on.
type Event interface {
	Type() uint32
}

// RelayStateChangedEvent is published for every relay whose value changed.
type RelayStateChangedEvent struct {
	RelayID   string `json:"relay_id" example:"fence_lighting" doc:"Relay identifier"`
	Ordinal   int    `json:"ordinal" example:"0" doc:"Position of the relay in the layout"`
	Enabled   bool   `json:"enabled" example:"true" doc:"Whether the relay is energised"`
	Timestamp string `json:"timestamp" example:"2026-05-01T19:30:00Z" doc:"Change timestamp"`
}

// Type returns the event type identifier for RelayStateChangedEvent.
func (e RelayStateChangedEvent) Type() uint32 { return TypeRelayStateChanged }

// HardwareFaultEvent is published when a word could not be written.
type HardwareFaultEvent struct {
	Transport string `json:"transport" example:"expander@0x20" doc:"Transport that failed"`
	Error     string `json:"error" example:"i2c: remote I/O error" doc:"Error reported by the driver"`
	Timestamp string `json:"timestamp" example:"2026-05-01T19:30:00Z" doc:"Fault timestamp"`
}

// Type returns the event type identifier for HardwareFaultEvent.
func (e HardwareFaultEvent) Type() uint32 { return TypeHardwareFault }

// LogEntryEvent carries one log record to SSE clients.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-05-01T19:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"server" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// ConfigReloadedEvent is published after the config file changed on disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"config.toml" doc:"Reloaded file"`
	Timestamp string `json:"timestamp" example:"2026-05-01T19:30:00Z" doc:"Reload timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
