package archipelago

import "fmt"

// IntentKind names a player action.
type IntentKind string

const (
	IntentPlayCard       IntentKind = "play_card"
	IntentMoveToIsland   IntentKind = "move_to_island"
	IntentMoveToDining   IntentKind = "move_to_dining"
	IntentMoveMarker     IntentKind = "move_marker"
	IntentActivateEffect IntentKind = "activate_effect"
	IntentPickCloud      IntentKind = "pick_cloud"
	IntentAdvanceTurn    IntentKind = "advance_turn"
	IntentPass           IntentKind = "pass"
)

// Intent is one decoded player action. Only the fields of its kind are read.
type Intent struct {
	Kind      IntentKind `json:"kind"`
	Card      int        `json:"card,omitempty"`
	Students  Pool       `json:"students"`
	Island    int        `json:"island,omitempty"`
	Character int        `json:"character,omitempty"`
	Option    Option     `json:"option"`
	Cloud     int        `json:"cloud,omitempty"`
}

// Apply dispatches an intent to the matching operation.
func (g *Game) Apply(playerID string, in Intent) ([]Event, error) {
	switch in.Kind {
	case IntentPlayCard:
		return g.PlayCard(playerID, in.Card)
	case IntentMoveToIsland:
		return g.MoveToIsland(playerID, in.Students, in.Island)
	case IntentMoveToDining:
		return g.MoveToDining(playerID, in.Students)
	case IntentMoveMarker:
		return g.MoveMarker(playerID, in.Island)
	case IntentActivateEffect:
		return g.ActivateEffect(playerID, in.Character, in.Option)
	case IntentPickCloud:
		return g.PickCloud(playerID, in.Cloud)
	case IntentAdvanceTurn:
		return g.AdvanceTurn(playerID)
	case IntentPass:
		return g.Pass(playerID)
	}
	return nil, ruleErr("apply intent", ErrInvalidMove, fmt.Sprintf("unknown intent %q", in.Kind))
}
