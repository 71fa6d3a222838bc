package room

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Subscriber is one participant's push channel. Send must not block: a
// subscriber that cannot take a message returns an error and is dropped.
type Subscriber interface {
	Send(payload []byte) error
	Close()
}

// Room owns the authoritative state of one room and its live subscribers.
// All mutations happen under mu so events for the same room are applied in
// the order they are committed.
type Room struct {
	id string

	mu          sync.Mutex
	state       models.RoomState
	subscribers map[string]Subscriber
	closed      bool
}

// delivery is what a room hands back to the registry after a locked operation
type delivery struct {
	dropped []Subscriber
	empty   bool
}

func newRoom(id string) *Room {
	return &Room{
		id:          id,
		state:       models.NewRoomState(),
		subscribers: make(map[string]Subscriber),
	}
}

// ID returns the normalized room code
func (r *Room) ID() string {
	return r.id
}

// State returns a copy of the current state
func (r *Room) State() models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Subscribers returns the number of open channels
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// Connected reports whether the participant has an open channel
func (r *Room) Connected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subscribers[userID]
	return ok
}

// subscribe registers sub for userID, pushes the current state to it and
// tells everyone else about the newcomer. It returns the channel it replaced.
func (r *Room) subscribe(userID string, sub Subscriber, connected events.Connected) (Subscriber, delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, delivery{}, ErrRoomClosed
	}

	snapshot, err := events.Encode(events.NewSyncState(r.state.Clone()))
	if err != nil {
		return nil, delivery{}, err
	}

	old := r.subscribers[userID]
	if err := sub.Send(snapshot); err != nil {
		// the replaced channel stays in place; its transport is still live
		return nil, delivery{empty: len(r.subscribers) == 0}, fmt.Errorf("initial sync: %w", err)
	}
	r.subscribers[userID] = sub

	notice, err := events.Encode(connected)
	if err != nil {
		return old, delivery{}, err
	}

	d := delivery{dropped: r.sendLocked(notice, func(id string) bool { return id != userID })}
	d.empty = len(r.subscribers) == 0
	return old, d, nil
}

// unsubscribe removes sub if it is still the registered channel for userID.
// A superseded channel closing late never removes its replacement.
func (r *Room) unsubscribe(userID string, sub Subscriber) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.subscribers[userID]
	if ok && current == sub {
		delete(r.subscribers, userID)
		removed = true
	}
	return removed, len(r.subscribers) == 0
}

// apply runs one event through the processor and delivers the outcome
func (r *Room) apply(ev events.Event) (Outcome, delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Outcome{}, delivery{}, ErrRoomClosed
	}

	out := Apply(r.state, ev)
	r.state = out.State

	sender := ev.Sender()
	var d delivery
	switch out.Target {
	case TargetNone:
	case TargetSyncAll, TargetSyncAllExceptSender, TargetSyncToSender:
		payload, err := events.Encode(events.NewSyncState(r.state.Clone()))
		if err != nil {
			return out, d, err
		}
		d.dropped = r.sendLocked(payload, func(id string) bool {
			switch out.Target {
			case TargetSyncAll:
				return true
			case TargetSyncToSender:
				return id == sender
			default:
				return id != sender
			}
		})
	case TargetDeltaAllExceptSender:
		payload, err := events.Encode(out.Delta)
		if err != nil {
			return out, d, err
		}
		d.dropped = r.sendLocked(payload, func(id string) bool { return id != sender })
	}

	d.empty = len(r.subscribers) == 0
	return out, d, nil
}

// sendLocked pushes payload to every subscriber accepted by include. Channels
// that fail are removed and returned so the caller can close them.
func (r *Room) sendLocked(payload []byte, include func(id string) bool) []Subscriber {
	var dropped []Subscriber
	for id, sub := range r.subscribers {
		if !include(id) {
			continue
		}
		if err := sub.Send(payload); err != nil {
			log.Warn().
				Err(err).
				Str("room_id", r.id).
				Str("user_id", id).
				Msg("dropping subscriber after failed delivery")
			delete(r.subscribers, id)
			dropped = append(dropped, sub)
		}
	}
	return dropped
}

// closeIfEmpty marks the room closed when nobody is subscribed
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subscribers) > 0 {
		return false
	}
	r.closed = true
	return true
}

// close marks the room closed and hands back every subscriber
func (r *Room) close() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	subs := make([]Subscriber, 0, len(r.subscribers))
	for id, sub := range r.subscribers {
		subs = append(subs, sub)
		delete(r.subscribers, id)
	}
	return subs
}
