package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one applied room event as mirrored to the journal
type Entry struct {
	ID         uuid.UUID       `json:"eventId"`
	RoomID     string          `json:"roomId"`
	EventType  string          `json:"eventType"`
	UserID     string          `json:"userId"`
	RecordedAt time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// MetricsCollector defines the interface for collecting journal metrics
type MetricsCollector interface {
	RecordPublish(eventType string, success bool, duration time.Duration)
	RecordDropped()
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordPublish(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordDropped() {}
