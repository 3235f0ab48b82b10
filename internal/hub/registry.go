package hub

import (
	"strings"
	"sync"
)

// LandingChannel is the aggregate public feed channel. Wishlist
// channels are named by the wishlist's UUID string.
const LandingChannel = "landing"

// Registry tracks which live connections are interested in which
// channel. Entries are ephemeral and removed synchronously on
// disconnect. A subscriber holds at most one wishlist channel plus
// optionally the landing channel.
type Registry struct {
	mu        sync.RWMutex
	byChannel map[string]map[*Subscriber]struct{}
}

// NewRegistry returns an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{byChannel: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers the subscriber's interest in a channel. A second
// wishlist subscription replaces the first; the landing channel stacks
// with a wishlist channel.
func (r *Registry) Subscribe(sub *Subscriber, channel string) {
	channel = strings.TrimSpace(channel)
	if sub == nil || channel == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if channel != LandingChannel {
		for existing := range sub.channels {
			if existing != LandingChannel {
				r.removeLocked(sub, existing)
			}
		}
	}

	sub.channels[channel] = struct{}{}
	subs, ok := r.byChannel[channel]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		r.byChannel[channel] = subs
	}
	subs[sub] = struct{}{}
}

// Unsubscribe removes the subscriber from every channel it joined.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel := range sub.channels {
		r.removeLocked(sub, channel)
	}
}

func (r *Registry) removeLocked(sub *Subscriber, channel string) {
	delete(sub.channels, channel)
	if subs, ok := r.byChannel[channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.byChannel, channel)
		}
	}
}

// Subscribers returns a snapshot of the channel's current subscribers.
func (r *Registry) Subscribers(channel string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.byChannel[channel]
	out := make([]*Subscriber, 0, len(subs))
	for sub := range subs {
		out = append(out, sub)
	}
	return out
}

// Count reports how many subscribers a channel currently has.
func (r *Registry) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channel])
}
