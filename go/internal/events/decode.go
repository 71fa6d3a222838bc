package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// ErrInvalidEvent is returned for payloads that cannot be processed
var ErrInvalidEvent = errors.New("invalid event")

// Decode parses a submitted event. The payload must be a JSON object with a
// non-empty "type" and "userId".
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidEvent)
	}

	switch env.Type {
	case KindJoin:
		return decodeJoin(data)
	case KindMoveToObservers:
		return decodeAs[MoveToObservers](data)
	case KindLeave:
		return decodeAs[Leave](data)
	case KindVote:
		return decodeAs[Vote](data)
	case KindReveal:
		return decodeAs[Reveal](data)
	case KindReset:
		return decodeAs[Reset](data)
	case KindRequestState:
		return decodeAs[RequestState](data)
	case KindChangeName:
		return decodeAs[ChangeName](data)
	case KindSyncState, KindConnected:
		return nil, fmt.Errorf("%w: %s is a server message", ErrInvalidEvent, env.Type)
	default:
		raw := append(json.RawMessage(nil), bytes.TrimSpace(data)...)
		return Unknown{Envelope: env, Raw: raw}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

func decodeJoin(data []byte) (Event, error) {
	var ev Join
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	// A pointer field cannot tell an explicit null from a missing key.
	var probe struct {
		SeatIndex json.RawMessage `json:"seatIndex"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if probe.SeatIndex != nil && ev.SeatIndex == nil {
		seat := models.NoSeat()
		ev.SeatIndex = &seat
	}

	return ev, nil
}

// Encode marshals an event or server message for the wire.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// WithSender rewrites the "userId" of a raw event. Transports that know who is
// on the other end use it so a client cannot act for someone else.
func WithSender(data []byte, userID string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: event must be an object", ErrInvalidEvent)
	}

	id, err := json.Marshal(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	fields["userId"] = id

	return json.Marshal(fields)
}
