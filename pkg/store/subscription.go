package store

import (
	"sync"
)

// Subscription is a live feed of values. Only the most recent undelivered value is
// kept, so a slow consumer skips intermediate states but never blocks a writer.
// The channel returned by C is closed once the subscription ends.
type Subscription[T any] struct {
	ch     chan T
	done   chan struct{}
	lock   sync.Mutex
	closed bool
	err    error
	once   sync.Once
	stop   func()
}

func newSubscription[T any](stop func()) *Subscription[T] {
	return &Subscription[T]{
		ch:   make(chan T, 1),
		done: make(chan struct{}),
		stop: stop,
	}
}

// C returns the channel of delivered values.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed when the subscription ends, by Close or by a terminal error.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error, if the feed failed.
func (s *Subscription[T]) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// Close stops the feed. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.lock.Lock()
		s.closed = true
		close(s.ch)
		close(s.done)
		s.lock.Unlock()
		if s.stop != nil {
			s.stop()
		}
	})
}

func (s *Subscription[T]) deliver(v T) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- v
	}
}

func (s *Subscription[T]) fail(err error) {
	s.lock.Lock()
	if !s.closed {
		s.err = err
	}
	s.lock.Unlock()
	s.Close()
}
