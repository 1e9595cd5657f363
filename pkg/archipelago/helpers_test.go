package archipelago

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testPlayers(ids ...string) []*Player {
	towers := towersForSeats(len(ids))
	out := make([]*Player, len(ids))
	for i, id := range ids {
		out[i] = newPlayer(id, i, newBoard(id, towers[i], 9, 10))
	}
	return out
}

func newTestTurns(ids ...string) *TurnManager {
	return newTurnManager(testPlayers(ids...), 0, &recorder{})
}

func newTestGame(t *testing.T, ids ...string) *Game {
	t.Helper()
	g, err := NewGame(Config{Players: ids, Seed: 1})
	require.NoError(t, err)
	return g
}

// planAll passes for every player until the action phase starts.
func planAll(t *testing.T, g *Game) {
	t.Helper()
	for g.Snapshot().Phase == PhasePlanning {
		_, err := g.Pass(g.CurrentPlayer())
		require.NoError(t, err)
	}
}

// takeN picks up to n students out of p, lowest colours first.
func takeN(p Pool, n int) Pool {
	var out Pool
	for c := range p {
		k := min(p[c], n)
		out[c] = k
		n -= k
	}
	return out
}

// nextGroup returns the live group one step clockwise from the marker.
func nextGroup(s State) int {
	for i, g := range s.Islands {
		if g.ID == s.Marker {
			return s.Islands[(i+1)%len(s.Islands)].ID
		}
	}
	return -1
}

// holders counts the players holding each professor.
func holders(players []*Player) [NumColors]int {
	var out [NumColors]int
	for _, p := range players {
		for c := 0; c < NumColors; c++ {
			if p.Board.HasProfessor(Color(c)) {
				out[c]++
			}
		}
	}
	return out
}
