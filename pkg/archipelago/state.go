package archipelago

// PlayerState is a copy of one player's public state.
type PlayerState struct {
	ID         string       `json:"id"`
	Seat       int          `json:"seat"`
	Tower      TowerColor   `json:"tower"`
	Entrance   Pool         `json:"entrance"`
	Dining     Pool         `json:"dining"`
	Professors ProfessorSet `json:"professors"`
	Coins      int          `json:"coins"`
	Hand       []int        `json:"hand"`
	LastPlayed int          `json:"last_played,omitempty"`
}

// CharacterState is a copy of a character in play.
type CharacterState struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Used  bool   `json:"used"`
	State int    `json:"state,omitempty"`
}

// State is a point-in-time copy of the whole match. It shares no memory
// with the game.
type State struct {
	Round        int                `json:"round"`
	Phase        Phase              `json:"phase"`
	Step         Step               `json:"step,omitempty"`
	Current      string             `json:"current"`
	Order        []string           `json:"order"`
	Ledger       []Play             `json:"ledger,omitempty"`
	Players      []PlayerState      `json:"players"`
	Islands      []IslandGroup      `json:"islands"`
	Marker       int                `json:"marker"`
	Clouds       []Pool             `json:"clouds"`
	Characters   []CharacterState   `json:"characters,omitempty"`
	Towers       map[TowerColor]int `json:"towers"`
	Treasury     int                `json:"treasury"`
	BagRemaining int                `json:"bag_remaining"`
	DrawRule     bool               `json:"draw_rule,omitempty"`
	FinalRound   bool               `json:"final_round,omitempty"`
	Winner       TowerColor         `json:"winner,omitempty"`
}

// Snapshot returns a copy of the current state.
func (g *Game) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	tm := g.turns
	s := State{
		Round:        tm.round,
		Phase:        tm.phase,
		Current:      tm.order[tm.current],
		Order:        tm.Order(),
		Ledger:       tm.Ledger(),
		Islands:      g.islands.Groups(),
		Marker:       g.islands.marker,
		Towers:       make(map[TowerColor]int, len(g.towers)),
		Treasury:     tm.treasury,
		BagRemaining: g.bag.Remaining(),
		DrawRule:     tm.drawRule,
		FinalRound:   g.finalRound,
		Winner:       g.winner,
	}
	if tm.phase == PhaseAction {
		s.Step = tm.step
	}
	for _, p := range tm.players {
		ps := PlayerState{
			ID:         p.ID,
			Seat:       p.Seat,
			Tower:      p.Tower(),
			Entrance:   p.Board.Entrance.Students,
			Dining:     p.Board.Dining.Students,
			Professors: p.Board.Professors,
			Coins:      p.Board.Coins,
			Hand:       p.HandValues(),
		}
		if p.LastPlayed != nil {
			ps.LastPlayed = p.LastPlayed.Value
		}
		s.Players = append(s.Players, ps)
	}
	for _, c := range g.clouds {
		s.Clouds = append(s.Clouds, c.Students.Students)
	}
	for _, ch := range g.characters {
		s.Characters = append(s.Characters, CharacterState{
			Name: ch.Effect.Name(), Price: ch.Price, Used: ch.Used, State: ch.State,
		})
	}
	for t, n := range g.towers {
		s.Towers[t] = n
	}
	return s
}

// Player returns the state of one player.
func (s State) Player(id string) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

// Winners returns the ids of the players on the winning faction.
func (s State) Winners() []string {
	if s.Winner == NoTower {
		return nil
	}
	var out []string
	for _, p := range s.Players {
		if p.Tower == s.Winner {
			out = append(out, p.ID)
		}
	}
	return out
}
