package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is pushed to dashboard pages when their session state changes.
type Message struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

const TypeSessionEnded = "session_ended"

type outbound struct {
	data []byte
	// final closes the connection after the write.
	final bool
}

// Hub tracks connected pages by the session they were opened under.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[int64]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client under its session.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.sessions[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	h.mu.Unlock()
}

// SessionEnded tells the session's pages to re-run the route guard and then
// closes their sockets.
func (h *Hub) SessionEnded(sessionID int64, reason string) {
	h.send(sessionID, Message{Type: TypeSessionEnded, Reason: reason}, true)
}

func (h *Hub) send(sessionID int64, msg Message, final bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[sessionID] {
		select {
		case c.send <- outbound{data: data, final: final}:
		default:
			// Client buffer full; drop rather than block the caller.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}
