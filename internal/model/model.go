package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match statuses.
const (
	MatchWaiting  = "waiting"
	MatchActive   = "active"
	MatchFinished = "finished"
)

// Match is a lobby and, once started, a running game.
type Match struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	CreatorID  string        `json:"creator_id"`
	Status     string        `json:"status"`
	NumPlayers int           `json:"num_players"`
	Expert     bool          `json:"expert"`
	Seed       int64         `json:"seed"`
	Winners    []string      `json:"winners,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Players    []MatchPlayer `json:"players,omitempty"`
}

// MatchPlayer is a seat in a match. Seats follow join order.
type MatchPlayer struct {
	MatchID  string    `json:"match_id"`
	UserID   string    `json:"user_id"`
	Seat     int       `json:"seat"`
	JoinedAt time.Time `json:"joined_at"`
}

// HasPlayer reports whether the user holds a seat.
func (m *Match) HasPlayer(userID string) bool {
	for _, p := range m.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// PlayerIDs returns the user ids in seat order.
func (m *Match) PlayerIDs() []string {
	ids := make([]string, len(m.Players))
	for i, p := range m.Players {
		ids[i] = p.UserID
	}
	return ids
}

// Intent is a journal row: one accepted intent of a match, in order.
type Intent struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"match_id"`
	Seq       int             `json:"seq"`
	UserID    string          `json:"user_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Forced    bool            `json:"forced,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
