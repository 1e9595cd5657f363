package archipelago

import (
	"errors"
	"fmt"
	"strconv"
)

// Option carries the player's choices for an effect. Effects read only the
// fields they need.
type Option struct {
	Color    Color `json:"color"`
	Island   int   `json:"island"`
	Students Pool  `json:"students"`
}

// Effect is a character ability. Apply runs with the game lock held and must
// report rule violations as errors without mutating on failure.
type Effect interface {
	Name() string
	Cost() int
	Apply(ctx *EffectContext, opt Option) error
}

// Stateful effects start with a counter, such as a stock of tiles.
type Stateful interface {
	InitialState() int
}

// Character is an effect in play with its current price.
type Character struct {
	Effect Effect
	Price  int
	Used   bool
	State  int
}

func newCharacter(e Effect) *Character {
	c := &Character{Effect: e, Price: e.Cost()}
	if s, ok := e.(Stateful); ok {
		c.State = s.InitialState()
	}
	return c
}

// EffectContext is the view of the game an effect may act on.
type EffectContext struct {
	game  *Game
	actor *Player
	index int
}

// Actor returns the id of the player activating the effect.
func (ctx *EffectContext) Actor() string {
	return ctx.actor.ID
}

// Players returns the player ids in seat order.
func (ctx *EffectContext) Players() []string {
	out := make([]string, len(ctx.game.turns.players))
	for i, p := range ctx.game.turns.players {
		out[i] = p.ID
	}
	return out
}

// State returns the character's counter.
func (ctx *EffectContext) State() int {
	return ctx.game.characters[ctx.index].State
}

// SetState updates the character's counter.
func (ctx *EffectContext) SetState(n int) {
	ctx.game.characters[ctx.index].State = n
	ctx.game.rec.emit(EntityCharacter, strconv.Itoa(ctx.index), FieldEffectState, n)
}

// SetProfessorDrawRule lets the actor take professors on equal counts until the round ends.
func (ctx *EffectContext) SetProfessorDrawRule() {
	tm := ctx.game.turns
	if !tm.drawRule {
		tm.drawRule = true
		ctx.game.rec.emit(EntityTurn, "", FieldDrawRule, true)
	}
}

// AddMarkerSteps extends the marker range of the current turn.
func (ctx *EffectContext) AddMarkerSteps(n int) {
	ctx.game.turns.bonusSteps += n
}

// PlaceNoEntry blocks the next conquest on an island group. The tile goes
// back to this character once it has blocked a conquest.
func (ctx *EffectContext) PlaceNoEntry(island int) error {
	return ctx.game.islands.placeNoEntry(island, ctx.index)
}

// DiningCount returns the students of colour c in a player's dining room.
func (ctx *EffectContext) DiningCount(player string, c Color) (int, error) {
	p, ok := ctx.game.turns.byID[player]
	if !ok {
		return 0, fmt.Errorf("unknown player %q", player)
	}
	return p.Board.DiningCount(c), nil
}

// RemoveFromDining takes students out of a player's dining room and out of
// play. Professor control is re-evaluated; an unresolved tie
// is returned but the removal stands.
func (ctx *EffectContext) RemoveFromDining(player string, p Pool) error {
	target, ok := ctx.game.turns.byID[player]
	if !ok {
		return ruleErr("remove from dining", ErrInvalidMove, fmt.Sprintf("unknown player %q", player))
	}
	return ctx.game.turns.removeFromDining(target, p)
}

// activateEffect runs character index for the acting player. The price is
// checked before the effect runs and paid only if it succeeds. Each turn
// allows one activation.
func (g *Game) activateEffect(playerID string, index int, opt Option) error {
	const op = "activate effect"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	tm := g.turns
	if tm.phase != PhaseAction {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("not allowed during %s phase", tm.phase))
	}
	if index < 0 || index >= len(g.characters) {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("no character %d", index))
	}
	if tm.characterUsed {
		return ruleErr(op, ErrEffectUnaffordable, "a character was already used this turn")
	}
	ch := g.characters[index]
	if actor.Board.Coins < ch.Price {
		return ruleErr(op, ErrEffectUnaffordable,
			fmt.Sprintf("%s costs %d, have %d", ch.Effect.Name(), ch.Price, actor.Board.Coins))
	}

	ctx := &EffectContext{game: g, actor: actor, index: index}
	applyErr := ch.Effect.Apply(ctx, opt)
	if applyErr != nil && !errors.Is(applyErr, ErrProfessorTieUnresolved) {
		return &RuleError{Op: op, Err: ErrEffectUnaffordable, Detail: fmt.Sprintf("%s: %v", ch.Effect.Name(), applyErr), Cause: applyErr}
	}

	actor.Board.spendCoins(ch.Price, &g.rec)
	// The first use leaves a coin on the card.
	tm.treasury += ch.Price
	if !ch.Used {
		tm.treasury--
		ch.Used = true
		ch.Price++
		key := strconv.Itoa(index)
		g.rec.emit(EntityCharacter, key, FieldUsed, true)
		g.rec.emit(EntityCharacter, key, FieldPrice, ch.Price)
	}
	g.rec.emit(EntityGame, "", FieldTreasury, tm.treasury)
	tm.characterUsed = true
	// An unresolved professor tie leaves the effect applied and paid for.
	return applyErr
}
