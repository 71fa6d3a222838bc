package room

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mcdev12/planningpoker/go/internal/deck"
	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// DefaultGracePeriod is how long a room may stay without subscribers before it is removed
const DefaultGracePeriod = 5 * time.Minute

// RoomCodeLength is the length of generated room codes
const RoomCodeLength = 6

// Registry maps room codes to rooms. Rooms are created lazily on first
// subscription and removed once they have had no subscribers for the grace
// period.
type Registry struct {
	clock   clockwork.Clock
	reaper  *Reaper
	grace   time.Duration
	deck    deck.Deck
	metrics Metrics
	journal Journal

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock used for grace timers and timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithGracePeriod sets how long an empty room survives
func WithGracePeriod(d time.Duration) Option {
	return func(r *Registry) { r.grace = d }
}

// WithDeck sets the deck votes are validated against
func WithDeck(d deck.Deck) Option {
	return func(r *Registry) { r.deck = d }
}

// WithMetrics sets the metrics collector
func WithMetrics(m Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithJournal sets the journal applied events are mirrored to
func WithJournal(j Journal) Option {
	return func(r *Registry) { r.journal = j }
}

// NewRegistry creates a new Registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:   clockwork.NewRealClock(),
		grace:   DefaultGracePeriod,
		deck:    deck.Default(),
		metrics: NoOpMetrics{},
		journal: NoOpJournal{},
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reaper = NewReaper(r.clock)
	return r
}

// NormalizeID maps a room code to its canonical form. Codes are case-insensitive.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Deck returns the deck votes are validated against
func (r *Registry) Deck() deck.Deck {
	return r.deck
}

// GetOrCreate returns the room for id, creating it if needed
func (r *Registry) GetOrCreate(id string) (*Room, error) {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if rm, ok := r.rooms[id]; ok {
		return rm, nil
	}

	rm := newRoom(id)
	r.rooms[id] = rm
	r.metrics.RoomOpened()
	log.Info().Str("room_id", id).Msg("room created")
	return rm, nil
}

// Get returns the room for id if the registry holds it
func (r *Registry) Get(id string) (*Room, bool) {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

// Len returns the number of live rooms
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Stats summarizes the registry
type Stats struct {
	Rooms          int `json:"rooms"`
	Subscribers    int `json:"subscribers"`
	PendingReapers int `json:"pending_reapers"`
}

// Stats reports room and subscription counts
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	rooms := lo.Values(r.rooms)
	r.mu.Unlock()

	return Stats{
		Rooms:          len(rooms),
		Subscribers:    lo.SumBy(rooms, func(rm *Room) int { return rm.Subscribers() }),
		PendingReapers: r.reaper.Len(),
	}
}

// Create allocates a room under a fresh random code. The room is reaped like
// any other if nobody subscribes within the grace period.
func (r *Registry) Create() (*Room, error) {
	for {
		code := NewRoomCode()
		if _, exists := r.Get(code); exists {
			continue
		}

		rm, err := r.GetOrCreate(code)
		if err != nil {
			return nil, err
		}
		r.scheduleReap(rm.ID())
		return rm, nil
	}
}

// Remove deletes the room if it still has no subscribers. It reports whether
// the room was removed.
func (r *Registry) Remove(id string) bool {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return false
	}
	if !rm.closeIfEmpty() {
		log.Debug().Str("room_id", id).Msg("room has subscribers again, keeping it")
		return false
	}

	delete(r.rooms, id)
	r.metrics.RoomClosed(true)
	log.Info().Str("room_id", id).Msg("room removed after grace period")
	return true
}

// Subscribe opens a channel for userID in the room, creating the room if
// needed. A channel already open for the same participant is replaced and
// closed. The new channel receives the full state before anything else.
func (r *Registry) Subscribe(roomID, userID string, sub Subscriber) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingParticipant
	}

	for {
		rm, err := r.GetOrCreate(roomID)
		if err != nil {
			return err
		}
		r.reaper.Cancel(rm.ID())

		connected := events.NewConnected(userID, r.clock.Now().UnixMilli())
		old, d, err := rm.subscribe(userID, sub, connected)
		if errors.Is(err, ErrRoomClosed) {
			// reaped between lookup and subscribe; the next lookup creates a fresh room
			continue
		}
		if err != nil {
			r.settle(rm, d)
			return fmt.Errorf("failed to subscribe %s to room %s: %w", userID, rm.ID(), err)
		}

		if old != nil {
			old.Close()
			log.Info().Str("room_id", rm.ID()).Str("user_id", userID).Msg("superseded existing subscription")
		} else {
			r.metrics.SubscriberAdded()
		}
		log.Info().Str("room_id", rm.ID()).Str("user_id", userID).Msg("subscriber connected")

		r.settle(rm, d)
		return nil
	}
}

// Unsubscribe removes sub from the room if it is still the participant's
// channel. The participant's data stays in the room.
func (r *Registry) Unsubscribe(roomID, userID string, sub Subscriber) {
	rm, ok := r.Get(roomID)
	if !ok {
		return
	}

	removed, empty := rm.unsubscribe(userID, sub)
	if !removed {
		return
	}

	r.metrics.SubscriberRemoved()
	log.Info().Str("room_id", rm.ID()).Str("user_id", userID).Msg("subscriber disconnected")

	if empty {
		r.scheduleReap(rm.ID())
	}
}

// Submit applies an event to an existing room and delivers the result. Votes
// for cards outside the deck are rejected without touching the room.
func (r *Registry) Submit(roomID string, ev events.Event) error {
	rm, ok := r.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	if vote, ok := ev.(events.Vote); ok {
		if err := r.deck.Validate(vote.Vote); err != nil {
			return err
		}
	}

	out, d, err := rm.apply(ev)
	if errors.Is(err, ErrRoomClosed) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", ev.Kind(), err)
	}

	r.metrics.EventApplied(ev.Kind())
	if out.Target != TargetSyncToSender && out.Target != TargetNone {
		r.journal.Record(rm.ID(), ev, r.clock.Now())
	}

	log.Debug().
		Str("room_id", rm.ID()).
		Str("user_id", ev.Sender()).
		Str("event_type", string(ev.Kind())).
		Str("target", out.Target.String()).
		Msg("event applied")

	r.settle(rm, d)
	return nil
}

// Snapshot returns the current state and subscriber count of a room
func (r *Registry) Snapshot(roomID string) (models.RoomState, int, error) {
	rm, ok := r.Get(roomID)
	if !ok {
		return models.RoomState{}, 0, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.state.Clone(), len(rm.subscribers), nil
}

// Shutdown cancels pending grace timers and closes every subscriber. Later
// subscriptions fail with ErrRegistryClosed.
func (r *Registry) Shutdown() {
	r.reaper.Stop()

	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*Room)
	r.closed = true
	r.mu.Unlock()

	var closed int
	for id, rm := range rooms {
		for _, sub := range rm.close() {
			sub.Close()
			r.metrics.SubscriberRemoved()
			closed++
		}
		r.metrics.RoomClosed(false)
		log.Debug().Str("room_id", id).Msg("room closed on shutdown")
	}

	log.Info().Int("rooms", len(rooms)).Int("subscribers", closed).Msg("room registry shut down")
}

// settle closes dropped channels and arms the grace timer when a room empties
func (r *Registry) settle(rm *Room, d delivery) {
	for _, sub := range d.dropped {
		sub.Close()
		r.metrics.DeliveryFailed()
		r.metrics.SubscriberRemoved()
	}
	if d.empty {
		r.scheduleReap(rm.ID())
	}
}

func (r *Registry) scheduleReap(id string) {
	r.reaper.Schedule(id, r.grace, func() {
		r.Remove(id)
	})
}

// NewRoomCode returns a random six character upper-case code
func NewRoomCode() string {
	u := uuid.New()
	code := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	for len(code) < RoomCodeLength {
		code = "0" + code
	}
	return strings.ToUpper(code[:RoomCodeLength])
}
