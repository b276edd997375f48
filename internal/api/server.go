package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/relaynode/internal/api/models"
	"github.com/smazurov/relaynode/internal/events"
	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/relay"
	"github.com/smazurov/relaynode/internal/version"
)

// RelayReader is the read side of the relay controller.
type RelayReader interface {
	Layout() *relay.Layout
	States() []relay.State
	Written() []relay.Word
	Readback() ([]relay.Word, error)
	TransportNames() []string
}

// Options configures the admin API.
type Options struct {
	Relays            RelayReader
	EventBus          *events.Bus
	PrometheusHandler http.Handler // optional
}

// Server is the huma admin API. It never switches relays.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	relays     RelayReader
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the admin API and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("relaynode admin API", version.Version)
	config.Info.Description = "Read-only management surface for the relay controller"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	s := &Server{
		api:      api,
		mux:      mux,
		relays:   opts.Relays,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Serve serves the admin API on ln until Stop. It returns nil after Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Admin API listening", "addr", ln.Addr().String(), "docs", "/docs")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin API: %w", err)
	}
	return nil
}

// Start binds addr and serves.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Stop closes the server. SSE streams are cut rather than drained.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping admin API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Reads every transport back; 503 when the hardware does not answer",
		Tags:        []string{"health"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		if _, err := s.relays.Readback(); err != nil {
			return nil, huma.Error503ServiceUnavailable("Relay hardware unavailable", err)
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "Relay hardware reachable",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerRelayRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}
