package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HubMetrics tracks the live event fan-out layer.
type HubMetrics struct {
	subscribers   *prometheus.GaugeVec
	published     *prometheus.CounterVec
	droppedEvents prometheus.Counter
}

// NewHubMetrics registers the hub metrics on the provided registerer.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	if reg == nil {
		return &HubMetrics{}
	}
	subscribers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hub_subscribers",
		Help: "Currently connected event stream subscribers.",
	}, []string{"channel"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_events_published",
		Help: "Events published to the hub.",
	}, []string{"kind"})
	droppedEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_events_dropped",
		Help: "Events dropped because a subscriber queue was full.",
	})
	reg.MustRegister(subscribers, published, droppedEvents)
	return &HubMetrics{
		subscribers:   subscribers,
		published:     published,
		droppedEvents: droppedEvents,
	}
}

// SetSubscribers records the current subscriber count for a channel.
func (h *HubMetrics) SetSubscribers(channel string, n int) {
	if h == nil || h.subscribers == nil {
		return
	}
	h.subscribers.WithLabelValues(normalizeLabel(channel)).Set(float64(n))
}

// IncPublished counts an event published to the hub.
func (h *HubMetrics) IncPublished(kind string) {
	if h == nil || h.published == nil {
		return
	}
	h.published.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDropped counts an event dropped from a full subscriber queue.
func (h *HubMetrics) IncDropped() {
	if h == nil || h.droppedEvents == nil {
		return
	}
	h.droppedEvents.Inc()
}
