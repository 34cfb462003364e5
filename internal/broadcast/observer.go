package broadcast

import (
	"errors"
	"sync"
)

// ErrObserverFull is returned when an observer's buffer has no room for an event
var ErrObserverFull = errors.New("observer buffer full")

// ErrObserverClosed is returned when delivering to a closed observer
var ErrObserverClosed = errors.New("observer closed")

// ChannelObserver buffers events on a channel for a single consumer, such as
// an HTTP event stream. A slow consumer loses events instead of stalling the
// publisher.
type ChannelObserver struct {
	id     string
	events chan Event

	mu     sync.Mutex
	closed bool
}

// NewChannelObserver creates an observer holding up to bufferSize undelivered events
func NewChannelObserver(id string, bufferSize int) *ChannelObserver {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &ChannelObserver{id: id, events: make(chan Event, bufferSize)}
}

func (o *ChannelObserver) ID() string { return o.id }

// Events returns the channel events are delivered on. It is closed by Close.
func (o *ChannelObserver) Events() <-chan Event { return o.events }

// Deliver enqueues event without blocking
func (o *ChannelObserver) Deliver(event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrObserverClosed
	}
	select {
	case o.events <- event:
		return nil
	default:
		return ErrObserverFull
	}
}

// Close stops further deliveries and closes the events channel
func (o *ChannelObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.events)
}
