package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Events the hub itself sends. Match events come from the services.
const (
	EventConnected  = "connected"   // first message on every connection
	EventMatchState = "match_state" // full state, sent to a new subscriber
	EventError      = "error"       // a client message was refused
)

// maxSubscriptions caps the matches one connection can follow.
const maxSubscriptions = 16

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id"`
	Data    any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	MatchID string `json:"match_id"`
}

// WSConn wraps a WebSocket connection with its user and subscription count.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	subs   int // guarded by Hub.mu
}

// Hub fans match events out to subscribed connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	matches     map[string]map[*WSConn]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		matches:     make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection and all its subscriptions, then closes its send channel.
// Calling it twice for the same connection is a no-op.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for matchID, conns := range h.matches {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.matches, matchID)
		}
	}
	close(c.send)
}

// Subscribe adds a registered connection to a match channel. It reports false
// for unknown connections and for connections at the subscription cap.
func (h *Hub) Subscribe(c *WSConn, matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return false
	}
	if h.matches[matchID][c] {
		return true
	}
	if c.subs >= maxSubscriptions {
		return false
	}
	if h.matches[matchID] == nil {
		h.matches[matchID] = make(map[*WSConn]bool)
	}
	h.matches[matchID][c] = true
	c.subs++
	return true
}

// Unsubscribe removes a connection from a match channel.
func (h *Hub) Unsubscribe(c *WSConn, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.matches[matchID]
	if !conns[c] {
		return
	}
	delete(conns, c)
	c.subs--
	if len(conns) == 0 {
		delete(h.matches, matchID)
	}
}

func marshalEvent(event WSEvent) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Str("matchId", event.MatchID).Msg("Failed to marshal WebSocket event")
		return nil, false
	}
	return data, true
}

// deliver queues data without blocking. Callers hold h.mu, so c.send is open.
func deliver(c *WSConn, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().Str("userId", c.userID).Msg("Dropping WebSocket message, buffer full")
		return false
	}
}

// Send queues an event for one connection. It reports false when the
// connection is gone or its buffer is full.
func (h *Hub) Send(c *WSConn, event WSEvent) bool {
	data, ok := marshalEvent(event)
	if !ok {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connections[c] && deliver(c, data)
}

// BroadcastToMatch sends an event to every connection subscribed to a match.
// Slow consumers with a full buffer miss the event.
func (h *Hub) BroadcastToMatch(matchID string, event WSEvent) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.matches[matchID] {
		deliver(c, data)
	}
}

// BroadcastToUser sends an event to every connection of a user.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.userID == userID {
			deliver(c, data)
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// MatchSubscriberCount returns the number of connections subscribed to a match.
func (h *Hub) MatchSubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}
