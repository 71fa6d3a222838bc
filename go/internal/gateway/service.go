package gateway

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/room"
)

// Service exposes a room registry over SSE, WebSocket and REST
type Service struct {
	registry          *room.Registry
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	sseHandler        *SSEHandler
	roomHandler       *RoomHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Clock            clockwork.Clock
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Clock:            clockwork.NewRealClock(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, registry *room.Registry) *Service {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	connectionManager := NewConnectionManager(registry, config.ConnectionConfig, config.Clock)

	return &Service{
		registry:          registry,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		sseHandler:        NewSSEHandler(registry, config.ConnectionConfig, config.Clock),
		roomHandler:       NewRoomHandler(registry),
	}
}

// RegisterRoutes registers the gateway routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/room/{id}/events", s.sseHandler.HandleSubscribe)
	mux.HandleFunc("POST /api/room/{id}/events", s.roomHandler.HandleSubmitEvent)
	mux.HandleFunc("POST /api/rooms", s.roomHandler.HandleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.roomHandler.HandleGetRoom)
	mux.HandleFunc("GET /api/deck", s.roomHandler.HandleGetDeck)
	mux.HandleFunc("GET /ws/room/{id}", s.wsHandler.HandleRoomConnection)
	mux.HandleFunc("GET /ws/stats", s.wsHandler.HandleConnectionStats)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "planning_poker"
	stats["status"] = "running"
	return stats
}

// Stop closes every WebSocket connection. Event streams end when their
// channels are closed by the registry.
func (s *Service) Stop() {
	s.connectionManager.CloseAll()
	log.Info().Msg("gateway stopped")
}
