package bot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/protocol"
	"github.com/freeeve/archipelago/pkg/archipelago"
)

// ErrRejected is returned when the server refuses an intent on rule grounds.
var ErrRejected = errors.New("intent rejected")

// WSEvent mirrors handler.WSEvent for client-side deserialization.
type WSEvent struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id"`
	Data    json.RawMessage `json:"data"`
}

// Client is an HTTP+WebSocket client for a single bot player.
type Client struct {
	name     string
	baseURL  string
	token    string
	userID   string
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// NewClient creates a new bot client targeting the given server URL.
func NewClient(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan WSEvent, 64),
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the bot name.
func (c *Client) Name() string { return c.name }

// UserID returns the bot's user ID after login.
func (c *Client) UserID() string { return c.userID }

// Login authenticates via the dev login endpoint and resolves the user id.
func (c *Client) Login() error {
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(http.MethodGet, "/auth/dev?name="+url.QueryEscape(c.name), nil, &tokens); err != nil {
		return fmt.Errorf("dev login: %w", err)
	}
	c.token = tokens.AccessToken

	var user struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	c.userID = user.ID
	log.Debug().Str("bot", c.name).Str("userId", c.userID).Msg("Bot logged in")
	return nil
}

// CreateMatch creates a new match and returns its ID.
func (c *Client) CreateMatch(name string, players int, expert bool) (string, error) {
	body := map[string]any{"name": name, "num_players": players, "expert": expert}
	var m struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/api/v1/matches", body, &m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// JoinMatch takes a seat in a waiting match.
func (c *Client) JoinMatch(matchID string) error {
	return c.do(http.MethodPost, "/api/v1/matches/"+matchID+"/join", nil, nil)
}

// StartMatch starts a full match (creator only).
func (c *Client) StartMatch(matchID string) error {
	return c.do(http.MethodPost, "/api/v1/matches/"+matchID+"/start", nil, nil)
}

// State fetches the current state of a match.
func (c *Client) State(matchID string) (archipelago.State, error) {
	var st archipelago.State
	err := c.do(http.MethodGet, "/api/v1/matches/"+matchID+"/state", nil, &st)
	return st, err
}

// Submit sends one intent. Rule rejections are reported as ErrRejected.
func (c *Client) Submit(matchID string, in archipelago.Intent) (archipelago.State, error) {
	payload, err := protocol.Encode(in)
	if err != nil {
		return archipelago.State{}, err
	}
	var res struct {
		State archipelago.State `json:"state"`
	}
	err = c.do(http.MethodPost, "/api/v1/matches/"+matchID+"/intents", payload, &res)
	return res.State, err
}

// ConnectWS opens a WebSocket connection and starts listening for events.
func (c *Client) ConnectWS() error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?token=" + url.QueryEscape(c.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	go c.readWSLoop()
	return nil
}

// SubscribeMatch asks the server for the events of a match.
func (c *Client) SubscribeMatch(matchID string) error {
	msg := map[string]string{"action": "subscribe", "match_id": matchID}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedWS
			c.mu.Unlock()
			if !closed {
				log.Debug().Err(err).Str("bot", c.name).Msg("WS read error")
			}
			return
		}
		// The server batches queued events into one frame, one per line.
		for _, line := range bytes.Split(msg, []byte("\n")) {
			var event WSEvent
			if err := json.Unmarshal(line, &event); err != nil {
				continue
			}
			c.events <- event
		}
	}
}

// do sends a JSON request and decodes the response into out when non-nil.
// payload may be a json.RawMessage or any value to marshal.
func (c *Client) do(method, path string, payload, out any) error {
	var body io.Reader
	switch p := payload.(type) {
	case nil:
		if method == http.MethodPost {
			body = strings.NewReader("{}")
		}
	case json.RawMessage:
		body = bytes.NewReader(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrRejected, bytes.TrimSpace(data))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
