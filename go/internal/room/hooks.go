package room

import (
	"time"

	"github.com/mcdev12/planningpoker/go/internal/events"
)

// Metrics receives room lifecycle and delivery counters
type Metrics interface {
	RoomOpened()
	RoomClosed(reaped bool)
	SubscriberAdded()
	SubscriberRemoved()
	EventApplied(kind events.Kind)
	DeliveryFailed()
}

// Journal mirrors applied events somewhere outside the process. Implementations
// must not block.
type Journal interface {
	Record(roomID string, ev events.Event, at time.Time)
}

// NoOpMetrics is a Metrics that does nothing
type NoOpMetrics struct{}

func (NoOpMetrics) RoomOpened() {}
func (NoOpMetrics) RoomClosed(bool) {}
func (NoOpMetrics) SubscriberAdded() {}
func (NoOpMetrics) SubscriberRemoved() {}
func (NoOpMetrics) EventApplied(events.Kind) {}
func (NoOpMetrics) DeliveryFailed() {}

// NoOpJournal is a Journal that drops everything
type NoOpJournal struct{}

func (NoOpJournal) Record(string, events.Event, time.Time) {}
