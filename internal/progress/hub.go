package progress

import (
	"sync"

	"workforce-backend/internal/shared/metrics"
	"workforce-backend/internal/shared/telemetry"
)

// Event is the transient notification pushed to subscribers. It is never persisted.
type Event struct {
	DocumentID string `json:"documentId"`
	Status     Stage  `json:"status"`
}

const defaultBuffer = 16

// Hub fans progress events out to the subscribers of the uploading user.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C          <-chan Event
	ch         chan Event
	hub        *Hub
	userID     string
	documentID string
	closed     bool // guarded by hub.mu
}

// Subscribe registers a receiver for userID. A non-empty documentID limits
// delivery to that upload.
func (h *Hub) Subscribe(userID, documentID string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, userID: userID, documentID: documentID}

	h.mu.Lock()
	if h.closed {
		sub.closed = true
		close(ch)
		h.mu.Unlock()
		return sub
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	if set, ok := h.subs[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.userID)
		}
	}
	s.closed = true
	close(s.ch)
}

// Close ends every open subscription and makes later ones start closed, so
// long-lived streams return during server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.closed = true
			close(sub.ch)
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
}

// Publish delivers ev to every matching subscriber of userID without blocking.
// Subscribers with a full buffer miss the event.
func (h *Hub) Publish(userID string, ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs[userID] {
		if sub.documentID != "" && sub.documentID != ev.DocumentID {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			metrics.IncProgressDropped()
			telemetry.Warn("progress.dropped", map[string]any{
				"user_id":     userID,
				"document_id": ev.DocumentID,
				"status":      string(ev.Status),
			})
		}
	}
	return delivered
}

// Subscribers returns the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
