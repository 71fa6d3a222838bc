package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/deck"
	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/room"
	"github.com/mcdev12/planningpoker/go/internal/stats"
)

// maxEventBody caps the size of a submitted event
const maxEventBody = 64 << 10

// RoomResponse is the REST view of a room
type RoomResponse struct {
	RoomID      string           `json:"roomId"`
	State       models.RoomState `json:"state"`
	Statistics  stats.Result     `json:"statistics"`
	Subscribers int              `json:"subscribers"`
}

// CreateRoomResponse carries a freshly allocated room code
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// RoomHandler handles event submission and room queries
type RoomHandler struct {
	registry *room.Registry
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(registry *room.Registry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

// HandleSubmitEvent handles POST /api/room/{id}/events
func (h *RoomHandler) HandleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ev, err := events.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.registry.Submit(roomID, ev); err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			log.Warn().Err(err).Str("room_id", roomID).Str("event_type", string(ev.Kind())).Msg("event rejected")
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

// HandleCreateRoom handles POST /api/rooms
func (h *RoomHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.registry.Create()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateRoomResponse{RoomID: rm.ID()})
}

// HandleGetRoom handles GET /api/rooms/{id}
func (h *RoomHandler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := room.NormalizeID(r.PathValue("id"))

	state, subscribers, err := h.registry.Snapshot(roomID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{
		RoomID:      roomID,
		State:       state,
		Statistics:  stats.ForState(state),
		Subscribers: subscribers,
	})
}

// HandleGetDeck handles GET /api/deck
func (h *RoomHandler) HandleGetDeck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Deck())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, events.ErrInvalidEvent),
		errors.Is(err, deck.ErrInvalidCard),
		errors.Is(err, room.ErrMissingParticipant):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "Room not found"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	http.Error(w, msg, status)
}
