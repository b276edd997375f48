package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/relaynode/internal/api/models"
	"github.com/smazurov/relaynode/internal/events"
	"github.com/smazurov/relaynode/internal/logging"
)

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Most recent entries of the in-memory log buffer",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		entries := logging.GetBuffer().Tail(input.Limit)
		if entries == nil {
			entries = []logging.LogEntry{}
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: entries}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Buffered log entries first, then new entries as they are written",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for _, entry := range logging.GetBuffer().Tail(0) {
			if err := send.Data(LogEvent(0, entry)); err != nil {
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

// LogEvent converts a buffered entry into the event sent to log streams.
func LogEvent(seq uint64, entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
