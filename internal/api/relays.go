package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/relaynode/internal/api/models"
	"github.com/smazurov/relaynode/internal/relay"
)

func (s *Server) registerRelayRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-relays",
		Method:      http.MethodGet,
		Path:        "/api/relays",
		Summary:     "List relays",
		Description: "Relay catalogue of the active layout with current states",
		Tags:        []string{"relays"},
	}, func(_ context.Context, _ *struct{}) (*models.RelaysResponse, error) {
		layout := s.relays.Layout()
		states := s.relays.States()

		data := models.RelaysData{
			Layout: layout.Name,
			Relays: make([]models.RelayData, 0, layout.Len()),
		}
		for _, id := range layout.IDs() {
			data.Relays = append(data.Relays, relayData(layout, id, states[id]))
		}
		return &models.RelaysResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-relay",
		Method:      http.MethodGet,
		Path:        "/api/relays/{id}",
		Summary:     "Get relay",
		Description: "One relay of the active layout",
		Tags:        []string{"relays"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.RelayInput) (*models.RelayResponse, error) {
		layout := s.relays.Layout()
		id, ok := layout.Lookup(input.ID)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("relay %q not found", input.ID))
		}
		states := s.relays.States()
		return &models.RelayResponse{Body: relayData(layout, id, states[id])}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-hardware",
		Method:      http.MethodGet,
		Path:        "/api/hardware",
		Summary:     "Hardware readback",
		Description: "Last written and read-back control word per transport",
		Tags:        []string{"relays"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*models.HardwareResponse, error) {
		read, err := s.relays.Readback()
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("Relay hardware unavailable", err)
		}
		written := s.relays.Written()
		names := s.relays.TransportNames()

		data := models.HardwareData{Transports: make([]models.TransportData, len(names))}
		for i, name := range names {
			data.Transports[i] = models.TransportData{
				Name:     name,
				Written:  fmt.Sprintf("%#04x", byte(written[i])),
				Readback: fmt.Sprintf("%#04x", byte(read[i])),
				InSync:   written[i] == read[i],
			}
		}
		return &models.HardwareResponse{Body: data}, nil
	})
}

func relayData(layout *relay.Layout, id relay.ID, state relay.State) models.RelayData {
	def, _ := layout.Definition(id)
	return models.RelayData{
		ID:      def.Key,
		Name:    def.Name,
		Ordinal: int(id),
		Pin:     def.Pin,
		Enabled: state.Enabled,
	}
}
