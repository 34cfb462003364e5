// Package broadcast fans auction events out to the observers subscribed to
// each auction. Delivery is best-effort and at-most-once: nothing is retained
// for observers that join later or miss an event.
package broadcast

import (
	"errors"
	"fmt"
	"sync"
)

// Observer receives events for the auctions it is subscribed to.
// Deliver must not block for long; it is called on the publisher's goroutine.
type Observer interface {
	ID() string
	Deliver(event Event) error
}

// Publisher is the side of the broadcaster the bidding engine depends on
type Publisher interface {
	Publish(auctionID string, event Event) error
}

var _ OrderedPublisher = (*Broadcaster)(nil)

// Broadcaster is a concurrency-safe per-auction publish/subscribe hub.
// Its embedded Sequencer lets every writer sharing the hub keep
// per-auction events in commit order.
type Broadcaster struct {
	Sequencer

	mu       sync.RWMutex
	channels map[string]map[string]Observer // key: auctionID -> observerID -> observer
}

// NewBroadcaster creates an empty Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]map[string]Observer),
	}
}

// Subscribe adds observer to the channel of auctionID. Subscribing twice is a no-op.
func (b *Broadcaster) Subscribe(observer Observer, auctionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	observers, ok := b.channels[auctionID]
	if !ok {
		observers = make(map[string]Observer)
		b.channels[auctionID] = observers
	}
	observers[observer.ID()] = observer
}

// Unsubscribe removes observer from the channel of auctionID
func (b *Broadcaster) Unsubscribe(observer Observer, auctionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	observers, ok := b.channels[auctionID]
	if !ok {
		return
	}
	delete(observers, observer.ID())
	if len(observers) == 0 {
		delete(b.channels, auctionID)
	}
}

// Publish delivers event to every observer subscribed to auctionID at the
// moment of the call. Delivery failures do not stop delivery to the others;
// they are returned joined together.
func (b *Broadcaster) Publish(auctionID string, event Event) error {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.channels[auctionID]))
	for _, o := range b.channels[auctionID] {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	var errs []error
	for _, o := range observers {
		if err := o.Deliver(event); err != nil {
			errs = append(errs, fmt.Errorf("deliver %s to observer %s: %w", event.Type, o.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// SubscriberCount returns how many observers are subscribed to auctionID
func (b *Broadcaster) SubscriberCount(auctionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[auctionID])
}
