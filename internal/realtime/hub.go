package realtime

import (
	"log/slog"
	"sync"

	"github.com/iliyamo/tasktracker/internal/metrics"
)

// Hub is the subscriber set of the push channel.  There is a single
// unscoped audience: every joined client receives every broadcast.
//
// Join and Leave are safe under concurrent Broadcast, and Broadcast never
// blocks: a client whose queue is full misses that frame.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, clients: make(map[string]*Client)}
}

// Join adds a client to the subscriber set.
func (h *Hub) Join(c *Client) {
	if c == nil || c.SessionID == "" {
		return
	}
	h.mu.Lock()
	h.clients[c.SessionID] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.Subscribers.Inc()
	h.log.Info("hub.join", "session_id", c.SessionID, "subscribers", n)
}

// Leave removes a client and signals it to shut down.  Removal happens
// before Close so no broadcaster holds the client while it tears down.
func (h *Hub) Leave(sessionID string) {
	h.mu.Lock()
	c, ok := h.clients[sessionID]
	delete(h.clients, sessionID)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.Close()
	metrics.Subscribers.Dec()
	h.log.Info("hub.leave", "session_id", sessionID, "subscribers", n)
}

// Count returns the number of joined clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues frame on every joined client and reports how many
// clients accepted it and how many were skipped.
func (h *Hub) Broadcast(frame []byte) (delivered, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case <-c.Done():
			dropped++
			continue
		default:
		}
		select {
		case c.Send <- frame:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}
