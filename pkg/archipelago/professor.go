package archipelago

import (
	"errors"
	"fmt"
)

// theft records a professor taken on an equal count under the draw rule.
// It is handed back to from at the end of the round.
type theft struct {
	color    Color
	from, to string
}

// holder returns the player holding the professor of colour c, if any.
func (tm *TurnManager) holder(c Color) *Player {
	for _, p := range tm.players {
		if p.Board.HasProfessor(c) {
			return p
		}
	}
	return nil
}

// arbitrate decides who holds the professor of colour c after a dining room
// changed. actor is the player whose dining room grew, or nil after a removal.
// Players sharing the holder's tower never challenge it. A strictly greater
// count takes the professor; under the draw rule an equal count suffices for
// the actor. Two challengers tied at the top leave it where it is.
func (tm *TurnManager) arbitrate(c Color, actor *Player) error {
	holder := tm.holder(c)
	if holder == nil {
		if actor != nil && actor.Board.DiningCount(c) > 0 {
			actor.Board.addProfessor(c, tm.rec)
		}
		return nil
	}

	held := holder.Board.DiningCount(c)
	best := -1
	var challengers []*Player
	for _, p := range tm.players {
		if p.Tower() == holder.Tower() {
			continue
		}
		n := p.Board.DiningCount(c)
		eligible := n > held || (tm.drawRule && p == actor && n == held && n > 0)
		if !eligible {
			continue
		}
		switch {
		case n > best:
			best = n
			challengers = []*Player{p}
		case n == best:
			challengers = append(challengers, p)
		}
	}

	switch len(challengers) {
	case 0:
		return nil
	case 1:
	default:
		return ruleErr("arbitrate professor", ErrProfessorTieUnresolved,
			fmt.Sprintf("%s: %s and %s tie at %d", c, challengers[0].ID, challengers[1].ID, best))
	}

	winner := challengers[0]
	holder.Board.removeProfessor(c, tm.rec)
	winner.Board.addProfessor(c, tm.rec)
	if best == held {
		tm.stolen = append(tm.stolen, theft{color: c, from: holder.ID, to: winner.ID})
	}
	return nil
}

// addStudentsToDining moves p into the player's dining room, pays any coins
// earned and re-arbitrates every colour in p.
func (tm *TurnManager) addStudentsToDining(player *Player, p Pool) error {
	if err := player.Board.addToDining(p, tm.rec); err != nil {
		return err
	}
	if tm.coins && player.Board.accrueCoins(tm.milestone, &tm.treasury, tm.rec) > 0 {
		tm.rec.emit(EntityGame, "", FieldTreasury, tm.treasury)
	}
	var errs []error
	for _, c := range p.Colors() {
		if err := tm.arbitrate(c, player); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// removeFromDining takes p out of the player's dining room and re-arbitrates
// every colour in p. An unresolved tie is reported but the removal stands.
func (tm *TurnManager) removeFromDining(player *Player, p Pool) error {
	if err := player.Board.removeFromDining(p, tm.rec); err != nil {
		return err
	}
	var errs []error
	for _, c := range p.Colors() {
		if err := tm.arbitrate(c, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// returnStolen hands every professor taken under the draw rule back to its
// previous holder, provided the taker still holds it.
func (tm *TurnManager) returnStolen() {
	for i := len(tm.stolen) - 1; i >= 0; i-- {
		t := tm.stolen[i]
		to, from := tm.byID[t.to], tm.byID[t.from]
		if to == nil || from == nil || !to.Board.HasProfessor(t.color) {
			continue
		}
		to.Board.removeProfessor(t.color, tm.rec)
		from.Board.addProfessor(t.color, tm.rec)
	}
	tm.stolen = nil
}
