package room

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// recorder is an in-memory Subscriber that keeps every payload it was sent
type recorder struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failing  bool
}

func (r *recorder) Send(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.failing {
		return ErrSubscriberClosed
	}
	r.messages = append(r.messages, payload)
	return nil
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) received() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, 0, len(r.messages))
	for _, m := range r.messages {
		var msg map[string]any
		if err := json.Unmarshal(m, &msg); err != nil {
			panic(err)
		}
		out = append(out, msg)
	}
	return out
}

func (r *recorder) types() []string {
	var out []string
	for _, m := range r.received() {
		out = append(out, m["type"].(string))
	}
	return out
}

func (r *recorder) last() map[string]any {
	msgs := r.received()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// lastSync decodes the most recent syncState the recorder received
func (r *recorder) lastSync(t *testing.T) models.RoomState {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		var msg events.SyncState
		require.NoError(t, json.Unmarshal(r.messages[i], &msg))
		if msg.Type == events.KindSyncState {
			return msg.State
		}
	}
	t.Fatal("no syncState received")
	return models.RoomState{}
}

// mockSubscriber is a testify mock of Subscriber
type mockSubscriber struct {
	mock.Mock
}

func (m *mockSubscriber) Send(payload []byte) error {
	args := m.Called(payload)
	return args.Error(0)
}

func (m *mockSubscriber) Close() {
	m.Called()
}

// mockMetrics is a testify mock of Metrics
type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RoomOpened() { m.Called() }
func (m *mockMetrics) RoomClosed(reaped bool) { m.Called(reaped) }
func (m *mockMetrics) SubscriberAdded() { m.Called() }
func (m *mockMetrics) SubscriberRemoved() { m.Called() }
func (m *mockMetrics) EventApplied(kind events.Kind) { m.Called(kind) }
func (m *mockMetrics) DeliveryFailed() { m.Called() }

func mustDecode(t *testing.T, payload string) events.Event {
	t.Helper()
	ev, err := events.Decode([]byte(payload))
	require.NoError(t, err)
	return ev
}
