package broadcast

import "sync"

// OrderedPublisher is a Publisher that can hold an auction's publication
// order while a storage write and the publish of its event happen together.
type OrderedPublisher interface {
	Publisher
	// Sequence blocks until auctionID's sequence is free and holds it until
	// the returned release func is called.
	Sequence(auctionID string) (release func())
}

// Sequencer is a keyed mutex: one lock per auction, created on demand and
// dropped once nobody holds or waits for it. The zero value is ready to use.
//
// Holding an auction's sequence across "conditional write, then publish"
// makes subscribers see that auction's events in commit order. It only orders
// delivery within one process; the conditional write is still what decides
// which write wins.
type Sequencer struct {
	mu    sync.Mutex
	locks map[string]*sequenceLock
}

type sequenceLock struct {
	mu   sync.Mutex
	refs int
}

// Sequence acquires auctionID's lock and returns its release func.
// Releasing more than once is a no-op.
func (s *Sequencer) Sequence(auctionID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sequenceLock)
	}
	l, ok := s.locks[auctionID]
	if !ok {
		l = &sequenceLock{}
		s.locks[auctionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()

			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, auctionID)
			}
			s.mu.Unlock()
		})
	}
}

// held reports how many auctions currently have a lock entry
func (s *Sequencer) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
