package archipelago

import (
	"fmt"
	"sort"
)

// Phase is the part of the round being played.
type Phase string

const (
	PhasePlanning Phase = "planning"
	PhaseAction   Phase = "action"
	PhaseEnded    Phase = "ended"
)

// Step is the part of an action turn being played.
type Step string

const (
	StepStudents Step = "students"
	StepMarker   Step = "marker"
	StepCloud    Step = "cloud"
	StepDone     Step = "done"
)

// Play is one entry of the round ledger.
type Play struct {
	Player string `json:"player"`
	Card   int    `json:"card"`
}

// TurnManager runs the rounds: card play, turn order, the per-turn steps,
// dining-room bookkeeping and professor control.
type TurnManager struct {
	players []*Player // by seat
	byID    map[string]*Player
	rec     *recorder

	order   []string
	ledger  []Play
	current int
	phase   Phase
	step    Step
	round   int

	moved         int
	bonusSteps    int
	characterUsed bool

	drawRule bool
	stolen   []theft

	coins     bool
	treasury  int
	milestone int
}

func newTurnManager(players []*Player, start int, rec *recorder) *TurnManager {
	tm := &TurnManager{
		players: players,
		byID:    make(map[string]*Player, len(players)),
		rec:     rec,
		phase:   PhasePlanning,
		round:   1,
	}
	for i := range players {
		p := players[(start+i)%len(players)]
		tm.byID[p.ID] = p
		tm.order = append(tm.order, p.ID)
	}
	return tm
}

// Current returns the acting player.
func (tm *TurnManager) Current() *Player {
	return tm.byID[tm.order[tm.current]]
}

// Order returns a copy of the current round order.
func (tm *TurnManager) Order() []string {
	return append([]string(nil), tm.order...)
}

// Ledger returns a copy of the cards played this round.
func (tm *TurnManager) Ledger() []Play {
	return append([]Play(nil), tm.ledger...)
}

func (tm *TurnManager) playedThisRound(value int) bool {
	for _, pl := range tm.ledger {
		if pl.Card == value {
			return true
		}
	}
	return false
}

// hasFreshCard reports whether p holds a card nobody has played this round.
func (tm *TurnManager) hasFreshCard(p *Player) bool {
	for v := range p.Hand {
		if !tm.playedThisRound(v) {
			return true
		}
	}
	return false
}

// expectActor checks that id is the acting player.
func (tm *TurnManager) expectActor(op, id string) (*Player, error) {
	if tm.phase == PhaseEnded {
		return nil, &RuleError{Op: op, Err: ErrGameOver}
	}
	p, ok := tm.byID[id]
	if !ok {
		return nil, ruleErr(op, ErrInvalidMove, fmt.Sprintf("unknown player %q", id))
	}
	if cur := tm.order[tm.current]; cur != id {
		return nil, ruleErr(op, ErrInvalidMove, fmt.Sprintf("%s is acting, not %s", cur, id))
	}
	return p, nil
}

// expectStep checks that the action phase is at step s.
func (tm *TurnManager) expectStep(op string, s Step) error {
	if tm.phase != PhaseAction {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("not allowed during %s phase", tm.phase))
	}
	if tm.step != s {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("turn is at %s step", tm.step))
	}
	return nil
}

// playCard plays an assistant for the acting player. A card already played
// by someone else this round is only allowed when every card left in hand has
// been played.
func (tm *TurnManager) playCard(id string, value int) error {
	p, err := tm.expectActor("play card", id)
	if err != nil {
		return err
	}
	if tm.phase != PhasePlanning {
		return ruleErr("play card", ErrInvalidMove, fmt.Sprintf("not allowed during %s phase", tm.phase))
	}
	card, ok := p.Hand[value]
	if !ok {
		return ruleErr("play card", ErrInvalidMove, fmt.Sprintf("card %d not in hand", value))
	}
	if tm.playedThisRound(value) && tm.hasFreshCard(p) {
		return ruleErr("play card", ErrCardUnavailable, fmt.Sprintf("card %d already played this round", value))
	}

	p.useAssistant(card, tm.rec)
	tm.ledger = append(tm.ledger, Play{Player: id, Card: value})
	if tm.current < len(tm.order)-1 {
		tm.setCurrent(tm.current + 1)
		return nil
	}
	tm.beginAction()
	return nil
}

// lowestPlayable returns the card a forced pass plays for p.
func (tm *TurnManager) lowestPlayable(p *Player) (int, bool) {
	values := p.HandValues()
	if len(values) == 0 {
		return 0, false
	}
	for _, v := range values {
		if !tm.playedThisRound(v) {
			return v, true
		}
	}
	return values[0], true
}

func (tm *TurnManager) beginAction() {
	tm.order = NextOrder(tm.ledger, tm.order)
	tm.phase = PhaseAction
	tm.rec.emit(EntityTurn, "", FieldOrder, tm.Order())
	tm.rec.emit(EntityTurn, "", FieldPhase, tm.phase)
	tm.setCurrent(0)
	tm.beginTurn()
}

func (tm *TurnManager) beginTurn() {
	tm.moved = 0
	tm.bonusSteps = 0
	tm.characterUsed = false
	tm.setStep(StepStudents)
}

func (tm *TurnManager) setCurrent(i int) {
	tm.current = i
	tm.rec.emit(EntityTurn, "", FieldCurrent, tm.order[i])
}

func (tm *TurnManager) setStep(s Step) {
	tm.step = s
	tm.rec.emit(EntityTurn, "", FieldStep, s)
}

// endTurn closes the acting player's turn. It reports true when that was
// the last turn of the round.
func (tm *TurnManager) endTurn() bool {
	if tm.current < len(tm.order)-1 {
		tm.setCurrent(tm.current + 1)
		tm.beginTurn()
		return false
	}
	return true
}

// endRound reverts the round's transient state and opens the planning phase
// of the next round. Planning follows the order computed from this round's
// cards.
func (tm *TurnManager) endRound() {
	tm.returnStolen()
	if tm.drawRule {
		tm.drawRule = false
		tm.rec.emit(EntityTurn, "", FieldDrawRule, false)
	}
	tm.ledger = nil
	tm.round++
	tm.phase = PhasePlanning
	tm.rec.emit(EntityTurn, "", FieldRound, tm.round)
	tm.rec.emit(EntityTurn, "", FieldPhase, tm.phase)
	tm.setCurrent(0)
}

func (tm *TurnManager) end() {
	tm.phase = PhaseEnded
	tm.rec.emit(EntityTurn, "", FieldPhase, tm.phase)
}

// NextOrder sorts the ledger by ascending card value. Players on the same
// value keep their relative position from previous.
func NextOrder(ledger []Play, previous []string) []string {
	pos := make(map[string]int, len(previous))
	for i, id := range previous {
		pos[id] = i
	}
	plays := append([]Play(nil), ledger...)
	sort.SliceStable(plays, func(i, j int) bool {
		if plays[i].Card != plays[j].Card {
			return plays[i].Card < plays[j].Card
		}
		return pos[plays[i].Player] < pos[plays[j].Player]
	})
	out := make([]string, len(plays))
	for i, pl := range plays {
		out[i] = pl.Player
	}
	return out
}
