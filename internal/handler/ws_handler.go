package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/auth"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second // Must be less than pongWait
	maxMsgSize   = 4096
	sendBufSize  = 256
	stateTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// StateSource returns the current state JSON of a running match.
type StateSource interface {
	State(ctx context.Context, matchID string) (json.RawMessage, error)
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	states StateSource
}

// NewWSHandler creates a WSHandler. With a non-nil states, a subscriber to a
// running match first receives its full state.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, states StateSource) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, states: states}
}

// ServeWS handles GET /api/v1/ws. Browsers cannot set headers on the upgrade,
// so the access token comes in the ?token= query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr, auth.TokenAccess)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]string{"user_id": claims.UserID}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", claims.UserID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// handleClientMessage applies a subscribe or unsubscribe request. Anything else is ignored.
func (h *WSHandler) handleClientMessage(c *WSConn, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.MatchID == "" {
		return
	}
	switch msg.Action {
	case "subscribe":
		if !h.hub.Subscribe(c, msg.MatchID) {
			h.hub.Send(c, WSEvent{Type: EventError, MatchID: msg.MatchID, Data: map[string]string{"error": "too many subscriptions"}})
			return
		}
		h.sendState(c, msg.MatchID)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.MatchID)
	}
}

// sendState pushes the current state so a subscriber does not have to poll
// before the next event. Matches that are not running yet send nothing.
func (h *WSHandler) sendState(c *WSConn, matchID string) {
	if h.states == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	state, err := h.states.State(ctx, matchID)
	if err != nil {
		log.Debug().Err(err).Str("matchId", matchID).Msg("No state for subscriber")
		return
	}
	h.hub.Send(c, WSEvent{Type: EventMatchState, MatchID: matchID, Data: state})
}

func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			return
		}
		h.handleClientMessage(c, message)
	}
}

func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Queued events go out newline-separated in the same frame.
			for range len(c.send) {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
