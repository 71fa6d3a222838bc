package events

import (
	"encoding/json"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Kind is the "type" tag carried by every event and pushed message
type Kind string

const (
	KindJoin            Kind = "join"
	KindMoveToObservers Kind = "moveToObservers"
	KindLeave           Kind = "leave"
	KindVote            Kind = "vote"
	KindReveal          Kind = "reveal"
	KindReset           Kind = "reset"
	KindRequestState    Kind = "requestState"
	KindChangeName      Kind = "changeName"

	// Server-originated messages
	KindSyncState Kind = "syncState"
	KindConnected Kind = "connected"
)

// Known reports whether k is one of the client event kinds the server understands
func (k Kind) Known() bool {
	switch k {
	case KindJoin, KindMoveToObservers, KindLeave, KindVote, KindReveal,
		KindReset, KindRequestState, KindChangeName:
		return true
	default:
		return false
	}
}

// Event is a client-submitted room event. The set of implementations is closed:
// Join, MoveToObservers, Leave, Vote, Reveal, Reset, RequestState, ChangeName
// and Unknown.
type Event interface {
	Kind() Kind
	Sender() string
	sealed()
}

// Envelope holds the fields shared by every event
type Envelope struct {
	Type      Kind   `json:"type"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp,omitempty"` // client clock, unix millis
}

func (e Envelope) Kind() Kind     { return e.Type }
func (e Envelope) Sender() string { return e.UserID }
func (Envelope) sealed()          {}

// Join upserts the sender as a participant. SeatIndex is nil when the client
// did not send a seat at all; a non-nil observer seat means an explicit null.
type Join struct {
	Envelope
	Username  string       `json:"username"`
	SeatIndex *models.Seat `json:"seatIndex,omitempty"`
}

// MoveToObservers gives up the sender's seat and vote.
type MoveToObservers struct {
	Envelope
}

// Leave removes the sender from the room when Permanent is set.
type Leave struct {
	Envelope
	Permanent bool `json:"permanent"`
}

// Vote sets the sender's card for the current round. A nil Vote withdraws it.
type Vote struct {
	Envelope
	Vote *string `json:"vote"`
}

// Reveal shows or hides the votes.
type Reveal struct {
	Envelope
	Revealed bool `json:"revealed"`
}

// Reset starts a new round.
type Reset struct {
	Envelope
}

// RequestState asks for a point-to-point syncState.
type RequestState struct {
	Envelope
}

// ChangeName renames the sender. SeatIndex is re-stamped by the server from the
// current state before the event is forwarded.
type ChangeName struct {
	Envelope
	Username  string      `json:"username"`
	SeatIndex models.Seat `json:"seatIndex"`
}

// Unknown is any event with a type the server does not understand. It is
// forwarded verbatim.
type Unknown struct {
	Envelope
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON returns the bytes the client originally sent.
func (u Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return json.Marshal(u.Envelope)
	}
	return u.Raw, nil
}

// SyncState carries the full room state.
type SyncState struct {
	Type  Kind             `json:"type"`
	State models.RoomState `json:"state"`
}

// NewSyncState wraps a state snapshot. The caller must pass a clone.
func NewSyncState(state models.RoomState) SyncState {
	return SyncState{Type: KindSyncState, State: state}
}

// Connected tells the other subscribers that a participant opened a channel.
type Connected struct {
	Type      Kind   `json:"type"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// NewConnected builds a connected notice stamped with server time in unix millis.
func NewConnected(userID string, at int64) Connected {
	return Connected{Type: KindConnected, UserID: userID, Timestamp: at}
}
