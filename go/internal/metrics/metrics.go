package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcdev12/planningpoker/go/internal/events"
)

// Collector records room, delivery, journal and HTTP metrics. It satisfies
// room.Metrics and journal.MetricsCollector.
type Collector struct {
	roomsActive       prometheus.Gauge
	subscribersActive prometheus.Gauge
	eventsApplied     *prometheus.CounterVec
	deliveryFailures  prometheus.Counter
	roomsReaped       prometheus.Counter

	journalPublished       *prometheus.CounterVec
	journalPublishDuration prometheus.Histogram
	journalDropped         prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers every metric with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "poker_rooms_active",
			Help: "Number of rooms held in memory",
		}),
		subscribersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "poker_subscribers_active",
			Help: "Number of open subscription channels",
		}),
		eventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poker_events_applied_total",
			Help: "Room events applied, by type",
		}, []string{"type"}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "poker_delivery_failures_total",
			Help: "Subscription channels dropped after a failed delivery",
		}),
		roomsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "poker_rooms_reaped_total",
			Help: "Rooms removed after staying empty for the grace period",
		}),
		journalPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "poker_journal_published_total",
			Help: "Journal publish attempts, by status",
		}, []string{"status"}),
		journalPublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "poker_journal_publish_duration_seconds",
			Help:    "Time spent publishing one journal entry",
			Buckets: prometheus.DefBuckets,
		}),
		journalDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "poker_journal_dropped_total",
			Help: "Journal entries dropped because the relay buffer was full",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
	}
}

func (c *Collector) RoomOpened() {
	c.roomsActive.Inc()
}

func (c *Collector) RoomClosed(reaped bool) {
	c.roomsActive.Dec()
	if reaped {
		c.roomsReaped.Inc()
	}
}

func (c *Collector) SubscriberAdded() {
	c.subscribersActive.Inc()
}

func (c *Collector) SubscriberRemoved() {
	c.subscribersActive.Dec()
}

// EventApplied counts an event. Kinds the server does not understand share
// one label so clients cannot grow the series set.
func (c *Collector) EventApplied(kind events.Kind) {
	label := string(kind)
	if !kind.Known() {
		label = "unknown"
	}
	c.eventsApplied.WithLabelValues(label).Inc()
}

func (c *Collector) DeliveryFailed() {
	c.deliveryFailures.Inc()
}

func (c *Collector) RecordPublish(_ string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.journalPublished.WithLabelValues(status).Inc()
	c.journalPublishDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordDropped() {
	c.journalDropped.Inc()
}
