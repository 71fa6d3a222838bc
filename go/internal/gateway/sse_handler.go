package gateway

import (
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/room"
)

// SSEHandler streams room messages over server-sent events
type SSEHandler struct {
	registry *room.Registry
	config   ConnectionConfig
	clock    clockwork.Clock
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(registry *room.Registry, config ConnectionConfig, clock clockwork.Clock) *SSEHandler {
	return &SSEHandler{
		registry: registry,
		config:   config,
		clock:    clock,
	}
}

// HandleSubscribe handles GET /api/room/{id}/events?userId=
func (h *SSEHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "Missing userId", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := NewChannel(roomID, userID, h.config.SendBuffer, h.clock.Now())
	if err := h.registry.Subscribe(roomID, userID, ch); err != nil {
		log.Error().Err(err).Str("room_id", ch.RoomID).Str("user_id", userID).Msg("failed to open event stream")
		writeError(w, err)
		return
	}
	defer func() {
		h.registry.Unsubscribe(ch.RoomID, userID, ch)
		ch.Close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Info().
		Str("connection_id", ch.ID).
		Str("room_id", ch.RoomID).
		Str("user_id", userID).
		Msg("event stream opened")

	heartbeat := h.clock.NewTicker(h.config.SSEHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info().Str("connection_id", ch.ID).Str("room_id", ch.RoomID).Msg("event stream closed by client")
			return

		case message, ok := <-ch.Messages():
			if !ok {
				log.Info().Str("connection_id", ch.ID).Str("room_id", ch.RoomID).Msg("event stream closed by server")
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", message); err != nil {
				log.Warn().Err(err).Str("connection_id", ch.ID).Msg("failed to write event")
				return
			}
			flusher.Flush()

		case <-heartbeat.Chan():
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
