// Package feed provides typed one-to-many signal channels. A Feed is the
// producer side of a signal source (update availability, activation,
// connectivity); each consumer holds a Subscription whose channel it drains
// and which it releases when done.
package feed

import (
	"sync"
	"sync/atomic"
)

// Feed broadcasts values of type T to all live subscriptions. It is safe for
// concurrent use. The zero value is not usable; call New.
type Feed[T any] struct {
	mu      sync.Mutex
	subs    map[*Subscription[T]]struct{}
	closed  bool
	dropped atomic.Int64
}

// New returns an open feed with no subscribers.
func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscription is one consumer's view of a Feed.
type Subscription[T any] struct {
	feed *Feed[T]
	ch   chan T
	once sync.Once
}

// Subscribe registers a new consumer with a channel buffer of the given
// size. Subscribing to a closed feed returns a subscription whose channel is
// already closed.
func (f *Feed[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 0 {
		buffer = 0
	}
	s := &Subscription[T]{feed: f, ch: make(chan T, buffer)}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	f.subs[s] = struct{}{}
	return s
}

// Send delivers v to every subscriber without blocking. A subscriber whose
// buffer is full misses the value; the miss is counted in Dropped. Send
// returns the number of subscribers that received v.
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for s := range f.subs {
		select {
		case s.ch <- v:
			delivered++
		default:
			f.dropped.Add(1)
		}
	}
	return delivered
}

// Len returns the number of live subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (f *Feed[T]) Dropped() int64 {
	return f.dropped.Load()
}

// Close releases every subscription and rejects future ones. Calling Close
// more than once is a no-op.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for s := range f.subs {
		delete(f.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

// C returns the receive channel. It is closed once the subscription is
// released or the feed is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Release detaches the subscription from its feed and closes its channel.
// It is idempotent and always returns nil; the error return lets a
// Subscription be registered as a teardown handle.
func (s *Subscription[T]) Release() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.subs, s)
	s.once.Do(func() { close(s.ch) })
	return nil
}
