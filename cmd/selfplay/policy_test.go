package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/archipelago/internal/protocol"
	"github.com/freeeve/archipelago/pkg/archipelago"
	"github.com/freeeve/archipelago/pkg/archipelago/characters"
)

func seatNames(n int) []string {
	ids, _ := (*journalStore)(nil).seats(context.Background(), n)
	return ids
}

func TestPlayMatchFinishes(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		for _, expert := range []bool{false, true} {
			for seed := int64(1); seed <= 3; seed++ {
				t.Run(fmt.Sprintf("players=%d/expert=%v/seed=%d", n, expert, seed), func(t *testing.T) {
					res, err := playMatch(matchConfig{players: seatNames(n), seed: seed, expert: expert, rules: archipelago.DefaultRules()})
					require.NoError(t, err)
					assert.Equal(t, archipelago.PhaseEnded, res.final.Phase)
					assert.Equal(t, len(res.journal), res.Intents)
					assert.LessOrEqual(t, res.Rounds, 10)
					assert.Equal(t, len(res.final.Islands), res.Islands)
					if res.Winner != "" {
						assert.NotEmpty(t, res.Winners)
					}
				})
			}
		}
	}
}

func TestPlayMatchIsDeterministic(t *testing.T) {
	cfg := matchConfig{players: seatNames(3), seed: 42, expert: true, rules: archipelago.DefaultRules()}
	a, err := playMatch(cfg)
	require.NoError(t, err)
	b, err := playMatch(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.journal, b.journal)
	assert.Equal(t, a.final, b.final)
}

// The journal, encoded as the server stores it, must replay to the same end state.
func TestJournalReplays(t *testing.T) {
	cfg := matchConfig{players: seatNames(2), seed: 7, expert: true, rules: archipelago.DefaultRules()}
	res, err := playMatch(cfg)
	require.NoError(t, err)

	game, err := archipelago.NewGame(archipelago.Config{
		Players: cfg.players,
		Seed:    cfg.seed,
		Expert:  cfg.expert,
		Rules:   cfg.rules,
		Effects: characters.All(),
	})
	require.NoError(t, err)

	for i, mv := range res.journal {
		raw, err := protocol.Encode(mv.intent)
		require.NoError(t, err, "encode intent %d", i+1)
		in, err := protocol.Decode(raw)
		require.NoError(t, err, "decode intent %d: %s", i+1, raw)
		if _, err := game.Apply(mv.player, in); err != nil && !errors.Is(err, archipelago.ErrProfessorTieUnresolved) {
			t.Fatalf("replay intent %d (%s): %v", i+1, raw, err)
		}
	}
	assert.Equal(t, res.final, game.Snapshot())
}

func TestInvariantsRejectSharedProfessor(t *testing.T) {
	var inv invariants
	var both archipelago.ProfessorSet
	both = both.With(archipelago.AllColors()[0])
	st := archipelago.State{
		Players: []archipelago.PlayerState{
			{ID: "a", Professors: both},
			{ID: "b", Professors: both},
		},
	}
	assert.Error(t, inv.check(st))
}

func TestInvariantsRejectGrowingArchipelago(t *testing.T) {
	inv := invariants{islands: 8}
	st := archipelago.State{Islands: make([]archipelago.IslandGroup, 9)}
	assert.Error(t, inv.check(st))

	st.Islands = st.Islands[:7]
	assert.NoError(t, inv.check(st))
	assert.Equal(t, 7, inv.islands)
}
