// Package broadcast fans events out to connected stream subscribers.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"NewsStream/internal/domain"
	"NewsStream/internal/ports"
)

// Hub tracks subscribers and delivers every broadcast to each of them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	newID  func() string
	logger *slog.Logger
}

var _ ports.Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]*Subscriber),
		newID:  shortID,
		logger: logger,
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

// Register adds a new subscriber.
func (h *Hub) Register() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.newID()
	for {
		if _, taken := h.subs[id]; !taken {
			break
		}
		id = h.newID()
	}
	sub := newSubscriber(id)
	h.subs[id] = sub
	return sub
}

// Unregister removes and closes the subscriber with id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	remaining := len(h.subs)
	h.mu.Unlock()

	if ok {
		sub.Close()
		h.logger.Info("client disconnected", "client_id", id, "remaining", remaining)
	}
}

// Broadcast enqueues event for every subscriber. Subscribers whose enqueue
// fails are removed after the sweep.
func (h *Hub) Broadcast(event domain.Event) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var failed []string
	for _, sub := range targets {
		if err := sub.Enqueue(event); err != nil {
			h.logger.Error("error sending to client", "client_id", sub.ID(), "error", err)
			failed = append(failed, sub.ID())
		}
	}

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range failed {
		delete(h.subs, id)
	}
	h.mu.Unlock()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown sends a shutdown event to every subscriber and closes their
// queues so streams end after draining.
func (h *Hub) Shutdown() {
	h.Broadcast(domain.ShutdownEvent())

	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	h.logger.Info("subscribers notified of shutdown", "count", len(subs))
}
