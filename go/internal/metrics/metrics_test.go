package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/journal"
	"github.com/mcdev12/planningpoker/go/internal/room"
)

var (
	_ room.Metrics             = (*Collector)(nil)
	_ journal.MetricsCollector = (*Collector)(nil)
)

// value returns the value of the series with the given name and label pairs
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			have := map[string]string{}
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue series
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestCollector_RoomLifecycle(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RoomOpened()
	c.RoomOpened()
	c.SubscriberAdded()
	c.SubscriberAdded()
	c.SubscriberRemoved()
	c.RoomClosed(true)
	c.DeliveryFailed()

	req.Equal(1.0, value(t, reg, "poker_rooms_active"))
	req.Equal(1.0, value(t, reg, "poker_subscribers_active"))
	req.Equal(1.0, value(t, reg, "poker_rooms_reaped_total"))
	req.Equal(1.0, value(t, reg, "poker_delivery_failures_total"))
}

func TestCollector_EventLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.EventApplied(events.KindVote)
	c.EventApplied(events.KindVote)
	c.EventApplied(events.Kind("confetti"))
	c.EventApplied(events.Kind("fireworks"))

	require.Equal(t, 2.0, value(t, reg, "poker_events_applied_total", "type", "vote"))
	require.Equal(t, 2.0, value(t, reg, "poker_events_applied_total", "type", "unknown"))
	require.Zero(t, value(t, reg, "poker_events_applied_total", "type", "confetti"))
}

func TestCollector_Journal(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublish("vote", true, 10*time.Millisecond)
	c.RecordPublish("vote", false, 10*time.Millisecond)
	c.RecordDropped()

	require.Equal(t, 1.0, value(t, reg, "poker_journal_published_total", "status", "success"))
	require.Equal(t, 1.0, value(t, reg, "poker_journal_published_total", "status", "failure"))
	require.Equal(t, 2.0, value(t, reg, "poker_journal_publish_duration_seconds"))
	require.Equal(t, 1.0, value(t, reg, "poker_journal_dropped_total"))
}

func TestCollector_Middleware(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Room not found", http.StatusNotFound)
	})
	mux.HandleFunc("GET /stream", func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Flusher)
		req.True(ok)
		w.WriteHeader(http.StatusOK)
	})
	handler := c.Middleware(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/rooms/ABC", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	req.Equal(1.0, value(t, reg, "http_requests_total", "endpoint", "GET /api/rooms/{id}", "status", "404"))
	req.Equal(1.0, value(t, reg, "http_requests_total", "endpoint", "GET /stream", "status", "200"))
	req.Equal(1.0, value(t, reg, "http_requests_total", "endpoint", "unmatched", "status", "404"))
}
