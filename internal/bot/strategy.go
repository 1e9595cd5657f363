// Package bot plays archipelago matches, either in-process against the
// engine or as HTTP clients of a running server.
package bot

import (
	"math/rand"

	"github.com/freeeve/archipelago/pkg/archipelago"
)

// effectChance is the odds (1 in n) that an expert bot tries a character first.
const effectChance = 4

// Strategy proposes intents for the acting player, best first. The caller
// submits them in order until the engine accepts one. Every strategy ends its
// list with a pass, which is always legal for the acting player.
type Strategy interface {
	Name() string
	Candidates(st archipelago.State) []archipelago.Intent
}

// StrategyByName returns the named strategy, defaulting to random.
func StrategyByName(name string, seed int64) Strategy {
	if name == "pass" {
		return PassStrategy{}
	}
	return NewRandomStrategy(seed)
}

// PassStrategy only ever passes: the lowest card in planning, an empty turn in action.
type PassStrategy struct{}

func (PassStrategy) Name() string { return "pass" }

func (PassStrategy) Candidates(archipelago.State) []archipelago.Intent {
	return []archipelago.Intent{{Kind: archipelago.IntentPass}}
}

// RandomStrategy proposes every move it can think of in random order and
// leaves legality to the engine. Not safe for concurrent use.
type RandomStrategy struct {
	rng *rand.Rand
}

// NewRandomStrategy creates a RandomStrategy with a deterministic source.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Name() string { return "random" }

func (s *RandomStrategy) Candidates(st archipelago.State) []archipelago.Intent {
	me, _ := st.Player(st.Current)
	var out []archipelago.Intent

	if st.Phase == archipelago.PhasePlanning {
		for _, i := range s.rng.Perm(len(me.Hand)) {
			out = append(out, archipelago.Intent{Kind: archipelago.IntentPlayCard, Card: me.Hand[i]})
		}
		return append(out, archipelago.Intent{Kind: archipelago.IntentPass})
	}

	if len(st.Characters) > 0 && st.Step != archipelago.StepDone && s.rng.Intn(effectChance) == 0 {
		for _, i := range s.rng.Perm(len(st.Characters)) {
			out = append(out, archipelago.Intent{
				Kind:      archipelago.IntentActivateEffect,
				Character: i,
				Option:    s.randomOption(st),
			})
		}
	}

	switch st.Step {
	case archipelago.StepStudents:
		for _, c := range shuffled(s.rng, me.Entrance.Colors()) {
			one := archipelago.PoolOf(c, 1)
			toIsland := archipelago.Intent{Kind: archipelago.IntentMoveToIsland, Students: one, Island: s.randomIsland(st)}
			toDining := archipelago.Intent{Kind: archipelago.IntentMoveToDining, Students: one}
			if s.rng.Intn(2) == 0 {
				out = append(out, toIsland, toDining)
			} else {
				out = append(out, toDining, toIsland)
			}
		}
	case archipelago.StepMarker:
		for _, i := range s.rng.Perm(len(st.Islands)) {
			out = append(out, archipelago.Intent{Kind: archipelago.IntentMoveMarker, Island: st.Islands[i].ID})
		}
	case archipelago.StepCloud:
		for _, i := range s.rng.Perm(len(st.Clouds)) {
			out = append(out, archipelago.Intent{Kind: archipelago.IntentPickCloud, Cloud: i})
		}
	case archipelago.StepDone:
		out = append(out, archipelago.Intent{Kind: archipelago.IntentAdvanceTurn})
	}
	return append(out, archipelago.Intent{Kind: archipelago.IntentPass})
}

func (s *RandomStrategy) randomIsland(st archipelago.State) int {
	if len(st.Islands) == 0 {
		return 0
	}
	return st.Islands[s.rng.Intn(len(st.Islands))].ID
}

func (s *RandomStrategy) randomOption(st archipelago.State) archipelago.Option {
	colors := archipelago.AllColors()
	return archipelago.Option{
		Color:  colors[s.rng.Intn(len(colors))],
		Island: s.randomIsland(st),
	}
}

func shuffled[T any](rng *rand.Rand, xs []T) []T {
	out := make([]T, len(xs))
	for i, j := range rng.Perm(len(xs)) {
		out[i] = xs[j]
	}
	return out
}
