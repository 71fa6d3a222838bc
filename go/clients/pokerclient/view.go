package pokerclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/room"
)

// View is a participant's local copy of a room. Deltas from the server are
// applied with the server's own merge rules. A full sync replaces everyone's
// record with the server copy except our own seat and name, which stay as we
// last set them until the server catches up. The same goes for our vote
// until the server echoes it back or the round is reset.
type View struct {
	mu       sync.Mutex
	self     string
	name     string
	observer bool
	state    models.RoomState

	votePending bool
	vote        *string
}

// Reaction tells the transport what to do after a message was applied
type Reaction struct {
	// RequestState is set when another participant connected and we should
	// ask for the authoritative state.
	RequestState bool
}

// NewView creates a new View for the participant
func NewView(selfID, name string) *View {
	return &View{
		self:  selfID,
		name:  name,
		state: models.NewRoomState(),
	}
}

// State returns a copy of the local state
func (v *View) State() models.RoomState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Clone()
}

// Name returns the name we go by
func (v *View) Name() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.name
}

// Self returns our own record, if we are in the room
func (v *View) Self() (models.Participant, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Participant(v.self)
}

// Apply folds one pushed message into the view
func (v *View) Apply(payload []byte) (Reaction, error) {
	var head struct {
		Type   events.Kind `json:"type"`
		UserID string      `json:"userId"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return Reaction{}, fmt.Errorf("decode message: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch head.Type {
	case events.KindSyncState:
		var msg events.SyncState
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Reaction{}, fmt.Errorf("decode syncState: %w", err)
		}
		v.sync(msg.State)
		return Reaction{}, nil

	case events.KindConnected:
		return Reaction{RequestState: head.UserID != v.self}, nil
	}

	ev, err := events.Decode(payload)
	if err != nil {
		return Reaction{}, err
	}
	switch ev.(type) {
	case events.Unknown:
		return Reaction{}, nil
	case events.Reset:
		v.clearVote()
	}
	v.state = room.Apply(v.state, ev).State
	return Reaction{}, nil
}

// sync adopts the server state, keeping our own seat, name and unconfirmed
// vote when we already had a record
func (v *View) sync(server models.RoomState) {
	local, hadLocal := v.state.Participant(v.self)
	if server.Participants == nil {
		server.Participants = []models.Participant{}
	}

	server.Participants = lo.Map(server.Participants, func(p models.Participant, _ int) models.Participant {
		if p.ID != v.self || !hadLocal {
			return p
		}
		p.Name = v.name
		if v.votePending {
			if sameVote(p.Vote, v.vote) {
				v.clearVote()
			} else {
				p.Vote = cloneVote(v.vote)
			}
		}
		switch {
		case v.observer:
			p.SeatIndex = models.NoSeat()
		case local.SeatIndex.Seated():
			p.SeatIndex = local.SeatIndex
		}
		return p
	})
	v.state = server
}

// local applies one of our own events before it is sent
func (v *View) local(ev events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch e := ev.(type) {
	case events.Join:
		v.name = e.Username
		if e.SeatIndex != nil {
			v.observer = !e.SeatIndex.Seated()
		}
	case events.MoveToObservers:
		v.observer = true
		v.clearVote()
	case events.Vote:
		v.votePending = true
		v.vote = cloneVote(e.Vote)
	case events.Reset:
		v.clearVote()
	case events.ChangeName:
		v.name = e.Username
	}
	v.state = room.Apply(v.state, ev).State
}

func (v *View) clearVote() {
	v.votePending = false
	v.vote = nil
}

func sameVote(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneVote(vote *string) *string {
	if vote == nil {
		return nil
	}
	return lo.ToPtr(*vote)
}
