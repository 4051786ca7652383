package broadcast

import (
	"context"
	"errors"
	"sync"

	"NewsStream/internal/domain"
)

// ErrQueueClosed is returned by a subscriber queue after Close.
var ErrQueueClosed = errors.New("subscriber queue closed")

// Subscriber is one stream client with an unbounded FIFO event queue.
type Subscriber struct {
	id     string
	mu     sync.Mutex
	queue  []domain.Event
	closed bool
	notify chan struct{}
}

func newSubscriber(id string) *Subscriber {
	return &Subscriber{id: id, notify: make(chan struct{}, 1)}
}

// ID returns the subscriber id.
func (s *Subscriber) ID() string { return s.id }

// Enqueue appends event; it never blocks.
func (s *Subscriber) Enqueue(event domain.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrQueueClosed
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	s.signal()
	return nil
}

// Next blocks until an event is available, ctx is done, or the queue is
// closed and drained.
func (s *Subscriber) Next(ctx context.Context) (domain.Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue[0] = domain.Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return event, nil
		}
		if s.closed {
			s.mu.Unlock()
			return domain.Event{}, ErrQueueClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Pending returns the number of queued events.
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting events; queued events can still be drained.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
