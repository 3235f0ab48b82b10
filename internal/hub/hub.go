package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/enums"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	"github.com/wishlane/wishlane-backend/pkg/metrics"
)

// Subscriber is one live connection's end of the event stream. The
// outbound queue is bounded; when it overflows the oldest events are
// dropped and a resync hint is queued so the client refetches state
// instead of trusting a gapped stream.
type Subscriber struct {
	ID       string
	outbound chan Event

	mu            sync.Mutex
	closed        bool
	resyncPending bool

	done     chan struct{}
	channels map[string]struct{}
}

// Hub fans committed state changes out to wishlist and landing feed
// subscribers. Delivery is best-effort; a slow subscriber never blocks
// the others.
type Hub struct {
	registry  *Registry
	logg      *logger.Logger
	metrics   *metrics.HubMetrics
	queueSize int
	heartbeat time.Duration
}

// New wires a hub from configuration. Metrics may be nil.
func New(cfg config.HubConfig, logg *logger.Logger, m *metrics.HubMetrics) (*Hub, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub logger required")
	}
	if cfg.SubscriberQueueSize < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub subscriber queue size must be at least 2")
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub heartbeat interval must be positive")
	}
	return &Hub{
		registry:  NewRegistry(),
		logg:      logg,
		metrics:   m,
		queueSize: cfg.SubscriberQueueSize,
		heartbeat: cfg.HeartbeatInterval,
	}, nil
}

// Registry exposes the subscription registry for read-side callers.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Subscribe creates a subscriber and registers it on the channel.
func (h *Hub) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.NewString(),
		outbound: make(chan Event, h.queueSize),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
	h.registry.Subscribe(sub, channel)
	h.metrics.SetSubscribers(metricChannel(channel), h.registry.Count(channel))
	return sub
}

// AddLanding additionally registers an existing subscriber on the
// landing feed.
func (h *Hub) AddLanding(sub *Subscriber) {
	h.registry.Subscribe(sub, LandingChannel)
	h.metrics.SetSubscribers(LandingChannel, h.registry.Count(LandingChannel))
}

// Unsubscribe removes the subscriber from every channel and stops its
// drain loop. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	var channels []string
	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.done)
	}
	sub.mu.Unlock()

	h.registry.mu.RLock()
	for channel := range sub.channels {
		channels = append(channels, channel)
	}
	h.registry.mu.RUnlock()

	h.registry.Unsubscribe(sub)
	for _, channel := range channels {
		h.metrics.SetSubscribers(metricChannel(channel), h.registry.Count(channel))
	}
}

// Publish delivers the event to every subscriber of its wishlist
// channel, and to the landing feed for landing-worthy kinds. Publish
// never blocks on a slow subscriber.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.metrics.IncPublished(string(event.Kind))

	seen := make(map[*Subscriber]struct{})
	h.deliver(ctx, event, h.registry.Subscribers(event.WishlistID.String()), seen)
	if event.Kind.IsLandingKind() {
		h.deliver(ctx, event, h.registry.Subscribers(LandingChannel), seen)
	}
}

func (h *Hub) deliver(ctx context.Context, event Event, subs []*Subscriber, seen map[*Subscriber]struct{}) {
	for _, sub := range subs {
		if _, dup := seen[sub]; dup {
			continue
		}
		seen[sub] = struct{}{}
		if dropped := sub.enqueue(event); dropped {
			h.metrics.IncDropped()
			h.logg.Warn(ctx, "subscriber queue full, dropped oldest event and queued resync")
		}
	}
}

// enqueue appends the event to the subscriber's queue. When the queue
// is full the oldest entries are evicted to make room for a resync
// hint plus the new event. Only the drain loop receives from outbound
// while the subscriber lock is held, so the sends below cannot block.
func (s *Subscriber) enqueue(event Event) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.outbound <- event:
		return false
	default:
	}

	for len(s.outbound) > cap(s.outbound)-2 {
		select {
		case old := <-s.outbound:
			if old.Kind == enums.EventResync {
				s.resyncPending = false
			}
			dropped = true
		default:
		}
	}
	if !s.resyncPending {
		s.resyncPending = true
		s.outbound <- resyncEvent(event.WishlistID)
	}
	s.outbound <- event
	return dropped
}

// ServeHTTP drains the subscriber's queue to the client as
// server-sent events until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, sub *Subscriber) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	defer h.Unsubscribe(sub)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	// Tell the client the stream is live before any domain event lands.
	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-sub.outbound:
			if event.Kind == enums.EventResync {
				sub.mu.Lock()
				sub.resyncPending = false
				sub.mu.Unlock()
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logg.Error(ctx, "marshal event", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			flusher.Flush()
		}
	}
}

func metricChannel(channel string) string {
	if channel == LandingChannel {
		return LandingChannel
	}
	return "wishlist"
}
