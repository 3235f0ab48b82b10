package hub

import (
	"testing"

	"github.com/google/uuid"
)

func newTestSubscriber() *Subscriber {
	return &Subscriber{
		ID:       uuid.NewString(),
		outbound: make(chan Event, 8),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

func TestSubscribeReplacesWishlistChannel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sub := newTestSubscriber()
	first := uuid.NewString()
	second := uuid.NewString()

	reg.Subscribe(sub, first)
	reg.Subscribe(sub, second)

	if reg.Count(first) != 0 {
		t.Fatalf("expected first wishlist channel vacated, got %d", reg.Count(first))
	}
	if reg.Count(second) != 1 {
		t.Fatalf("expected second wishlist channel occupied, got %d", reg.Count(second))
	}
}

func TestLandingStacksWithWishlistChannel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sub := newTestSubscriber()
	wishlist := uuid.NewString()

	reg.Subscribe(sub, wishlist)
	reg.Subscribe(sub, LandingChannel)

	if reg.Count(wishlist) != 1 {
		t.Fatalf("wishlist subscription lost when landing added")
	}
	if reg.Count(LandingChannel) != 1 {
		t.Fatalf("landing subscription missing")
	}

	// A new wishlist subscription keeps the landing one.
	reg.Subscribe(sub, uuid.NewString())
	if reg.Count(LandingChannel) != 1 {
		t.Fatalf("landing subscription lost on wishlist switch")
	}
	if reg.Count(wishlist) != 0 {
		t.Fatalf("old wishlist channel not vacated")
	}
}

func TestUnsubscribeRemovesAllChannels(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sub := newTestSubscriber()
	wishlist := uuid.NewString()

	reg.Subscribe(sub, wishlist)
	reg.Subscribe(sub, LandingChannel)
	reg.Unsubscribe(sub)

	if reg.Count(wishlist) != 0 || reg.Count(LandingChannel) != 0 {
		t.Fatalf("expected all channels vacated")
	}
	if len(reg.Subscribers(wishlist)) != 0 {
		t.Fatalf("expected no subscribers after unsubscribe")
	}
}
