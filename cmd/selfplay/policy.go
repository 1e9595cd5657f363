package main

import (
	"errors"
	"fmt"

	"github.com/freeeve/archipelago/internal/bot"
	"github.com/freeeve/archipelago/pkg/archipelago"
	"github.com/freeeve/archipelago/pkg/archipelago/characters"
)

// maxIntents bounds a single match in case the engine never reaches an end.
const maxIntents = 20000

// move is one accepted intent and the player who sent it.
type move struct {
	player string
	intent archipelago.Intent
}

// matchConfig describes one self-played match.
type matchConfig struct {
	players []string
	seed    int64
	expert  bool
	rules   archipelago.Rules
}

// matchResult summarizes a finished match.
type matchResult struct {
	Seed     int64    `json:"seed"`
	Players  int      `json:"players"`
	Expert   bool     `json:"expert"`
	Winner   string   `json:"winner"`
	Winners  []string `json:"winners,omitempty"`
	Rounds   int      `json:"rounds"`
	Intents  int      `json:"intents"`
	Rejected int      `json:"rejected"`
	Islands  int      `json:"islands"`
	Ties     int      `json:"ties"`

	journal []move
	final   archipelago.State
}

// invariants tracks properties that must hold after every accepted intent.
type invariants struct {
	islands int
}

func (c *invariants) check(st archipelago.State) error {
	holder := make(map[archipelago.Color]string)
	for _, p := range st.Players {
		for _, col := range archipelago.AllColors() {
			if !p.Professors.Has(col) {
				continue
			}
			if other, ok := holder[col]; ok {
				return fmt.Errorf("professor %s held by %s and %s", col, other, p.ID)
			}
			holder[col] = p.ID
		}
		if p.Coins < 0 {
			return fmt.Errorf("player %s has %d coins", p.ID, p.Coins)
		}
	}
	if c.islands > 0 && len(st.Islands) > c.islands {
		return fmt.Errorf("island groups grew from %d to %d", c.islands, len(st.Islands))
	}
	c.islands = len(st.Islands)
	for t, n := range st.Towers {
		if n < 0 {
			return fmt.Errorf("faction %s has %d towers", t, n)
		}
	}
	return nil
}

// playMatch runs one match to the end with the random strategy.
func playMatch(cfg matchConfig) (*matchResult, error) {
	game, err := archipelago.NewGame(archipelago.Config{
		Players: cfg.players,
		Seed:    cfg.seed,
		Expert:  cfg.expert,
		Rules:   cfg.rules,
		Effects: characters.All(),
	})
	if err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}

	policy := bot.NewRandomStrategy(cfg.seed ^ 0x5e1f)
	res := &matchResult{Seed: cfg.seed, Players: len(cfg.players), Expert: cfg.expert}
	var inv invariants

	for !game.Over() {
		if len(res.journal) >= maxIntents {
			return res, fmt.Errorf("seed %d: no end after %d intents", cfg.seed, maxIntents)
		}
		st := game.Snapshot()
		if err := inv.check(st); err != nil {
			return res, fmt.Errorf("seed %d intent %d: %w", cfg.seed, len(res.journal), err)
		}

		applied := false
		for _, in := range policy.Candidates(st) {
			_, err := game.Apply(st.Current, in)
			if errors.Is(err, archipelago.ErrProfessorTieUnresolved) {
				res.Ties++
				err = nil
			}
			if err != nil {
				res.Rejected++
				continue
			}
			res.journal = append(res.journal, move{player: st.Current, intent: in})
			applied = true
			break
		}
		if !applied {
			return res, fmt.Errorf("seed %d: %s has no legal intent in %s", cfg.seed, st.Current, st.Phase)
		}
	}

	final := game.Snapshot()
	if err := inv.check(final); err != nil {
		return res, fmt.Errorf("seed %d final state: %w", cfg.seed, err)
	}
	res.final = final
	res.Winner = string(final.Winner)
	res.Winners = final.Winners()
	res.Rounds = final.Round
	res.Intents = len(res.journal)
	res.Islands = len(final.Islands)
	return res, nil
}
