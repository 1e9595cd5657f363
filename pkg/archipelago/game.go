package archipelago

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
)

// Config describes a new match.
type Config struct {
	Players []string // seat order
	Seed    int64
	Expert  bool // coins and characters
	Rules   Rules
	Effects []Effect // characters are drawn from these when Expert is set
	Bag     Bag      // defaults to a RandomBag seeded from Seed
}

// Game is one match. Every exported method takes the game lock for the whole
// call, so intents from concurrent sessions are applied one at a time.
type Game struct {
	mu sync.Mutex

	rules      Rules
	numPlayers int
	expert     bool

	turns      *TurnManager
	islands    *Archipelago
	clouds     []*Cloud
	bag        Bag
	characters []*Character

	factions   []TowerColor
	towers     map[TowerColor]int
	finalRound bool
	winner     TowerColor

	rec recorder
}

// NewGame sets up a match: islands and marker, bag, entrances, clouds,
// coins and characters. The same Config always yields the same game.
func NewGame(cfg Config) (*Game, error) {
	rules := cfg.Rules
	if rules.EntranceSize == nil {
		rules = DefaultRules()
	}
	n := len(cfg.Players)
	if err := rules.Validate(n); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, n)
	for _, id := range cfg.Players {
		if id == "" || seen[id] {
			return nil, fmt.Errorf("player ids must be unique and non-empty")
		}
		seen[id] = true
	}
	if cfg.Expert && len(cfg.Effects) < NumberOfCharacters {
		return nil, fmt.Errorf("expert mode needs at least %d effects, got %d", NumberOfCharacters, len(cfg.Effects))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	g := &Game{
		rules:      rules,
		numPlayers: n,
		expert:     cfg.Expert,
		towers:     make(map[TowerColor]int),
	}

	g.islands = newArchipelago(NumIslands, rng.Intn(NumIslands), &g.rec)
	setup := NewRandomBag(uniformPool(rules.SetupStudentsPerColor), rng.Int63())
	for i := 1; i < NumIslands; i++ {
		if i == NumIslands/2 {
			continue
		}
		drawn, err := setup.Draw(1)
		if err != nil {
			break
		}
		g.islands.groups[(g.islands.marker+i)%NumIslands].Students.Add(drawn)
	}

	g.bag = cfg.Bag
	if g.bag == nil {
		g.bag = NewRandomBag(uniformPool(rules.StudentsPerColor), rng.Int63())
	}

	colors := towersForSeats(n)
	players := make([]*Player, n)
	for seat, id := range cfg.Players {
		p := newPlayer(id, seat, newBoard(id, colors[seat], rules.EntranceSize[n], rules.DiningCapacity))
		drawn, err := g.bag.Draw(rules.EntranceSize[n])
		if err != nil {
			return nil, fmt.Errorf("fill entrance of %s: %w", id, err)
		}
		if err := p.Board.addToEntrance(drawn, &g.rec); err != nil {
			return nil, err
		}
		players[seat] = p
		if _, ok := g.towers[colors[seat]]; !ok {
			g.towers[colors[seat]] = rules.Towers[n]
			g.factions = append(g.factions, colors[seat])
		}
	}

	g.turns = newTurnManager(players, rng.Intn(n), &g.rec)
	g.turns.milestone = rules.CoinMilestone
	if cfg.Expert {
		g.turns.coins = true
		g.turns.treasury = rules.Treasury
		for _, p := range players {
			give := min(rules.StartingCoins, g.turns.treasury)
			p.Board.Coins += give
			g.turns.treasury -= give
		}
		for _, i := range rng.Perm(len(cfg.Effects))[:NumberOfCharacters] {
			g.characters = append(g.characters, newCharacter(cfg.Effects[i]))
		}
	}

	for i := 0; i < n; i++ {
		g.clouds = append(g.clouds, newCloud(i, rules.CloudCapacity[n]))
	}
	g.refillClouds()

	g.rec.drain()
	return g, nil
}

func uniformPool(perColor int) Pool {
	var p Pool
	for c := range p {
		p[c] = perColor
	}
	return p
}

func (g *Game) apply(fn func() error) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := fn()
	return g.rec.drain(), err
}

// PlayCard plays an assistant card during planning.
func (g *Game) PlayCard(playerID string, value int) ([]Event, error) {
	return g.apply(func() error { return g.turns.playCard(playerID, value) })
}

// MoveToIsland moves up to MaxForMovements students from the entrance onto an island group.
func (g *Game) MoveToIsland(playerID string, students Pool, island int) ([]Event, error) {
	return g.apply(func() error { return g.moveToIsland(playerID, students, island) })
}

// MoveToDining moves up to MaxForMovements students from the entrance into the dining room.
func (g *Game) MoveToDining(playerID string, students Pool) ([]Event, error) {
	return g.apply(func() error { return g.moveToDining(playerID, students) })
}

// MoveMarker moves the marker onto an island group and resolves its conquest.
func (g *Game) MoveMarker(playerID string, island int) ([]Event, error) {
	return g.apply(func() error { return g.moveMarker(playerID, island) })
}

// ActivateEffect pays for and runs a character.
func (g *Game) ActivateEffect(playerID string, character int, opt Option) ([]Event, error) {
	return g.apply(func() error { return g.activateEffect(playerID, character, opt) })
}

// PickCloud moves a cloud's students into the entrance.
func (g *Game) PickCloud(playerID string, cloud int) ([]Event, error) {
	return g.apply(func() error { return g.pickCloud(playerID, cloud) })
}

// AdvanceTurn ends the acting player's turn once the cloud has been picked.
func (g *Game) AdvanceTurn(playerID string) ([]Event, error) {
	return g.apply(func() error { return g.advanceTurn(playerID) })
}

// Pass is the forced move for a player who ran out of time: the lowest
// playable card during planning, the end of the turn during action.
func (g *Game) Pass(playerID string) ([]Event, error) {
	return g.apply(func() error { return g.pass(playerID) })
}

// CurrentPlayer returns the id of the acting player.
func (g *Game) CurrentPlayer() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turns.order[g.turns.current]
}

// Over reports whether the match has ended.
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turns.phase == PhaseEnded
}

func (g *Game) checkMove(op string, actor *Player, students Pool) error {
	if err := g.turns.expectStep(op, StepStudents); err != nil {
		return err
	}
	total := students.Total()
	if !students.Valid() || total == 0 || total > MaxForMovements {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("must move 1..%d students, got %s", MaxForMovements, students))
	}
	if left := g.rules.StudentsPerTurn[g.numPlayers] - g.turns.moved; total > left {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("only %d students left to move this turn", left))
	}
	if !actor.Board.Entrance.Students.Contains(students) {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("%s not in entrance", students))
	}
	return nil
}

func (g *Game) moveToIsland(playerID string, students Pool, island int) error {
	const op = "move to island"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	if err := g.checkMove(op, actor, students); err != nil {
		return err
	}
	if _, ok := g.islands.Group(island); !ok {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("no island group %d", island))
	}
	if err := actor.Board.removeFromEntrance(students, &g.rec); err != nil {
		return err
	}
	if err := g.islands.addStudents(island, students); err != nil {
		return err
	}
	g.studentsMoved(actor, students.Total())
	return nil
}

func (g *Game) moveToDining(playerID string, students Pool) error {
	const op = "move to dining"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	if err := g.checkMove(op, actor, students); err != nil {
		return err
	}
	if !actor.Board.Dining.Fits(students) {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("dining room cannot hold %s", students))
	}
	if err := actor.Board.removeFromEntrance(students, &g.rec); err != nil {
		return err
	}
	// A professor tie leaves the move applied.
	err = g.turns.addStudentsToDining(actor, students)
	g.studentsMoved(actor, students.Total())
	return err
}

func (g *Game) studentsMoved(actor *Player, n int) {
	tm := g.turns
	tm.moved += n
	if tm.moved >= g.rules.StudentsPerTurn[g.numPlayers] || actor.Board.Entrance.Students.IsEmpty() {
		tm.setStep(StepMarker)
	}
}

func (g *Game) moveMarker(playerID string, island int) error {
	const op = "move marker"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	if err := g.turns.expectStep(op, StepMarker); err != nil {
		return err
	}
	steps := g.turns.bonusSteps
	if actor.LastPlayed != nil {
		steps += actor.LastPlayed.Steps
	}
	if err := g.islands.moveMarker(island, steps); err != nil {
		return err
	}
	g.resolveConquest(island)
	if g.turns.phase == PhaseEnded {
		return nil
	}
	for _, c := range g.clouds {
		if !c.Empty() {
			g.turns.setStep(StepCloud)
			return nil
		}
	}
	g.turns.setStep(StepDone)
	return nil
}

// factionProfessors returns the professors held by each tower colour.
func (g *Game) factionProfessors() map[TowerColor]ProfessorSet {
	out := make(map[TowerColor]ProfessorSet, len(g.factions))
	for _, p := range g.turns.players {
		out[p.Tower()] |= p.Board.Professors
	}
	return out
}

func (g *Game) resolveConquest(island int) Conquest {
	size := g.islands.groups[island].Size
	res := g.islands.conquer(island, g.factions, g.factionProfessors())
	if res.Blocked {
		g.returnTile(res.tileOwner)
		return res
	}
	if !res.Changed {
		return res
	}
	if res.Previous != NoTower {
		g.towers[res.Previous] += size
		g.rec.emit(EntityGame, string(res.Previous), FieldTowers, g.towers[res.Previous])
	}
	g.towers[res.Owner] -= min(size, g.towers[res.Owner])
	g.rec.emit(EntityGame, string(res.Owner), FieldTowers, g.towers[res.Owner])

	if g.towers[res.Owner] == 0 || g.islands.Count() <= g.rules.MinIslandGroups {
		g.finish()
	}
	return res
}

// returnTile puts a lifted no-entry tile back on the character it came from.
func (g *Game) returnTile(index int) {
	if index < 0 || index >= len(g.characters) {
		return
	}
	ch := g.characters[index]
	ch.State++
	g.rec.emit(EntityCharacter, strconv.Itoa(index), FieldEffectState, ch.State)
}

func (g *Game) pickCloud(playerID string, index int) error {
	const op = "pick cloud"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	if err := g.turns.expectStep(op, StepCloud); err != nil {
		return err
	}
	if index < 0 || index >= len(g.clouds) {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("no cloud %d", index))
	}
	c := g.clouds[index]
	if c.Empty() {
		return ruleErr(op, ErrInvalidMove, fmt.Sprintf("cloud %d is empty", index))
	}
	if !actor.Board.Entrance.Fits(c.Students.Students) {
		return ruleErr(op, ErrInvalidMove, "entrance cannot hold the cloud")
	}
	if err := actor.Board.addToEntrance(c.take(&g.rec), &g.rec); err != nil {
		return err
	}
	g.turns.setStep(StepDone)
	return nil
}

func (g *Game) advanceTurn(playerID string) error {
	const op = "advance turn"
	if _, err := g.turns.expectActor(op, playerID); err != nil {
		return err
	}
	if err := g.turns.expectStep(op, StepDone); err != nil {
		return err
	}
	g.closeTurn()
	return nil
}

func (g *Game) pass(playerID string) error {
	const op = "pass"
	actor, err := g.turns.expectActor(op, playerID)
	if err != nil {
		return err
	}
	if g.turns.phase == PhasePlanning {
		v, ok := g.turns.lowestPlayable(actor)
		if !ok {
			return ruleErr(op, ErrInvalidMove, "hand is empty")
		}
		return g.turns.playCard(playerID, v)
	}
	g.closeTurn()
	return nil
}

func (g *Game) closeTurn() {
	if !g.turns.endTurn() {
		return
	}
	if g.finalRound || g.handEmptied() {
		g.turns.returnStolen()
		g.finish()
		return
	}
	g.turns.endRound()
	g.refillClouds()
}

func (g *Game) handEmptied() bool {
	for _, p := range g.turns.players {
		if len(p.Hand) == 0 {
			return true
		}
	}
	return false
}

// refillClouds tops up the empty clouds. Running out of students makes this
// the last round.
func (g *Game) refillClouds() {
	for _, c := range g.clouds {
		if err := c.refill(g.bag, &g.rec); errors.Is(err, ErrBagEmpty) && !g.finalRound {
			g.finalRound = true
			g.rec.emit(EntityGame, "", FieldFinalRound, true)
		}
	}
}

func (g *Game) finish() {
	g.winner = g.leader()
	g.turns.end()
	g.rec.emit(EntityGame, "", FieldWinner, g.winner)
}

// leader returns the faction with the most towers placed, then the most
// professors. A full tie returns NoTower.
func (g *Game) leader() TowerColor {
	profs := g.factionProfessors()
	best, bestProfs, winner, tied := -1, -1, NoTower, false
	for _, t := range g.factions {
		placed := g.rules.Towers[g.numPlayers] - g.towers[t]
		np := profs[t].Count()
		switch {
		case placed > best || (placed == best && np > bestProfs):
			best, bestProfs, winner, tied = placed, np, t, false
		case placed == best && np == bestProfs:
			tied = true
		}
	}
	if tied {
		return NoTower
	}
	return winner
}
