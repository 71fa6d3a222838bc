package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/events"
)

// Publisher writes journal entries somewhere durable
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}

// Relay hands applied room events to a Publisher on a background goroutine.
// Record never blocks: when the buffer is full the entry is dropped.
type Relay struct {
	publisher      Publisher
	metrics        MetricsCollector
	publishTimeout time.Duration

	queue chan Entry
	done  chan struct{}
}

// RelayConfig holds configuration for a Relay
type RelayConfig struct {
	BufferSize     int
	PublishTimeout time.Duration
}

// DefaultRelayConfig returns default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BufferSize:     1024,
		PublishTimeout: 5 * time.Second,
	}
}

// NewRelay creates a new Relay
func NewRelay(publisher Publisher, metrics MetricsCollector, cfg RelayConfig) *Relay {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Relay{
		publisher:      publisher,
		metrics:        metrics,
		publishTimeout: cfg.PublishTimeout,
		queue:          make(chan Entry, cfg.BufferSize),
		done:           make(chan struct{}),
	}
}

// Record queues an applied event for publishing
func (r *Relay) Record(roomID string, ev events.Event, at time.Time) {
	payload, err := events.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode event for journal")
		return
	}

	entry := Entry{
		ID:         uuid.New(),
		RoomID:     roomID,
		EventType:  string(ev.Kind()),
		UserID:     ev.Sender(),
		RecordedAt: at.UTC(),
		Payload:    payload,
	}

	select {
	case r.queue <- entry:
	default:
		r.metrics.RecordDropped()
		log.Warn().Str("room_id", roomID).Str("event_type", entry.EventType).Msg("journal buffer full, dropping event")
	}
}

// Start publishes queued entries until ctx is cancelled. Entries still queued
// at that point are flushed before Start returns. Start must be called once.
func (r *Relay) Start(ctx context.Context) {
	defer close(r.done)

	log.Info().Msg("journal relay started")
	for {
		select {
		case <-ctx.Done():
			r.drain()
			log.Info().Msg("journal relay stopped")
			return
		case entry := <-r.queue:
			r.publish(entry)
		}
	}
}

// Wait blocks until Start has returned
func (r *Relay) Wait() {
	<-r.done
}

func (r *Relay) drain() {
	for {
		select {
		case entry := <-r.queue:
			r.publish(entry)
		default:
			return
		}
	}
}

func (r *Relay) publish(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.publishTimeout)
	defer cancel()

	start := time.Now()
	err := r.publisher.Publish(ctx, entry)
	r.metrics.RecordPublish(entry.EventType, err == nil, time.Since(start))

	if err != nil {
		log.Error().
			Err(err).
			Str("room_id", entry.RoomID).
			Str("event_type", entry.EventType).
			Str("event_id", entry.ID.String()).
			Msg("failed to publish journal entry")
	}
}
