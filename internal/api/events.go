package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/relaynode/internal/events"
)

// registerSSERoutes registers the relay event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Current relay states on connect, then relay changes, hardware faults and config reloads",
		Tags:        []string{"events"},
	}, map[string]any{
		"relay-state-changed": events.RelayStateChangedEvent{},
		"hardware-fault":      events.HardwareFaultEvent{},
		"config-reloaded":     events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.RelayStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.HardwareFaultEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		layout := s.relays.Layout()
		ids := layout.IDs()
		now := time.Now().UTC().Format(time.RFC3339)
		for i, state := range s.relays.States() {
			if err := send.Data(events.RelayStateChangedEvent{
				RelayID:   layout.Key(ids[i]),
				Ordinal:   i,
				Enabled:   state.Enabled,
				Timestamp: now,
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
