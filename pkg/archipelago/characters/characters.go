// Package characters provides the built-in character effects.
package characters

import (
	"errors"
	"fmt"

	"github.com/freeeve/archipelago/pkg/archipelago"
)

// Farmer lets the actor take professors on equal counts for the rest of the round.
type Farmer struct{}

func (Farmer) Name() string { return "farmer" }
func (Farmer) Cost() int    { return 2 }

func (Farmer) Apply(ctx *archipelago.EffectContext, _ archipelago.Option) error {
	ctx.SetProfessorDrawRule()
	return nil
}

// Postman adds two islands to this turn's marker range.
type Postman struct{}

func (Postman) Name() string { return "postman" }
func (Postman) Cost() int    { return 1 }

func (Postman) Apply(ctx *archipelago.EffectContext, _ archipelago.Option) error {
	ctx.AddMarkerSteps(2)
	return nil
}

// Grandma places one of her no-entry tiles on an island group.
type Grandma struct{}

// GrandmaTiles is the stock of no-entry tiles.
const GrandmaTiles = 4

func (Grandma) Name() string      { return "grandma" }
func (Grandma) Cost() int         { return 2 }
func (Grandma) InitialState() int { return GrandmaTiles }

func (Grandma) Apply(ctx *archipelago.EffectContext, opt archipelago.Option) error {
	if ctx.State() == 0 {
		return errors.New("no tiles left")
	}
	if err := ctx.PlaceNoEntry(opt.Island); err != nil {
		return err
	}
	ctx.SetState(ctx.State() - 1)
	return nil
}

// Thief takes up to three students of the chosen colour out of every dining room.
type Thief struct{}

func (Thief) Name() string { return "thief" }
func (Thief) Cost() int    { return 3 }

func (Thief) Apply(ctx *archipelago.EffectContext, opt archipelago.Option) error {
	if !opt.Color.Valid() {
		return fmt.Errorf("invalid colour %d", opt.Color)
	}
	var errs []error
	for _, id := range ctx.Players() {
		n, err := ctx.DiningCount(id, opt.Color)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if err := ctx.RemoveFromDining(id, archipelago.PoolOf(opt.Color, min(n, 3))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// All returns every built-in effect.
func All() []archipelago.Effect {
	return []archipelago.Effect{Farmer{}, Postman{}, Grandma{}, Thief{}}
}

// ByName returns the built-in effect with the given name.
func ByName(name string) (archipelago.Effect, bool) {
	for _, e := range All() {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}
