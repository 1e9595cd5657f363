package service

// Match event types pushed to subscribers.
const (
	EventMatchStarted = "match_started"
	EventIntent       = "intent_applied"
	EventTurnChanged  = "turn_changed"
	EventMatchEnded   = "match_ended"
	EventLobby        = "lobby_updated"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}
