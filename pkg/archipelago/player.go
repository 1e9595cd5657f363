package archipelago

import "sort"

// Assistant is an action card. Lower values act earlier next round; Steps is
// how far the card lets the marker travel.
type Assistant struct {
	Value int `json:"value"`
	Steps int `json:"steps"`
}

// NewAssistant returns the card of the given value.
func NewAssistant(value int) Assistant {
	return Assistant{Value: value, Steps: (value + 1) / 2}
}

// Player is a seat at the table.
type Player struct {
	ID         string
	Seat       int
	Board      *Board
	Hand       map[int]Assistant
	LastPlayed *Assistant
}

func newPlayer(id string, seat int, board *Board) *Player {
	hand := make(map[int]Assistant, MaxCardValue)
	for v := 1; v <= MaxCardValue; v++ {
		hand[v] = NewAssistant(v)
	}
	return &Player{ID: id, Seat: seat, Board: board, Hand: hand}
}

// HandValues returns the card values in hand, ascending.
func (p *Player) HandValues() []int {
	values := make([]int, 0, len(p.Hand))
	for v := range p.Hand {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

// Tower returns the player's faction.
func (p *Player) Tower() TowerColor {
	return p.Board.Tower
}

func (p *Player) useAssistant(a Assistant, rec *recorder) {
	delete(p.Hand, a.Value)
	played := a
	p.LastPlayed = &played
	rec.emit(EntityPlayer, p.ID, FieldHand, p.HandValues())
	rec.emit(EntityPlayer, p.ID, FieldLastPlayed, a.Value)
}
