package archipelago

import (
	"fmt"
	"sort"
	"strconv"
)

// IslandGroup is one or more fused islands. ID is the lowest id among its
// constituents and never changes once the group is formed.
type IslandGroup struct {
	ID       int        `json:"id"`
	Students Pool       `json:"students"`
	Owner    TowerColor `json:"owner,omitempty"`
	NoEntry  bool       `json:"no_entry,omitempty"`
	Size     int        `json:"size"`
}

func (g *IslandGroup) key() string {
	return strconv.Itoa(g.ID)
}

// Archipelago is the circular sequence of island groups. Islands are kept in
// an arena indexed by their original id; parent points each island at the
// group that absorbed it. tiles lists, per group, the character that owns
// each no-entry tile lying on it.
type Archipelago struct {
	groups map[int]*IslandGroup
	parent []int
	ring   []int
	tiles  map[int][]int
	marker int
	rec    *recorder
}

func newArchipelago(n, marker int, rec *recorder) *Archipelago {
	a := &Archipelago{
		groups: make(map[int]*IslandGroup, n),
		parent: make([]int, n),
		ring:   make([]int, n),
		tiles:  make(map[int][]int),
		marker: marker,
		rec:    rec,
	}
	for i := 0; i < n; i++ {
		a.groups[i] = &IslandGroup{ID: i, Size: 1}
		a.parent[i] = i
		a.ring[i] = i
	}
	return a
}

// Resolve returns the id of the group an original island belongs to.
func (a *Archipelago) Resolve(island int) (int, bool) {
	if island < 0 || island >= len(a.parent) {
		return 0, false
	}
	return a.find(island), true
}

func (a *Archipelago) find(i int) int {
	for a.parent[i] != i {
		a.parent[i] = a.parent[a.parent[i]]
		i = a.parent[i]
	}
	return i
}

// Count returns the number of live groups.
func (a *Archipelago) Count() int {
	return len(a.ring)
}

// Marker returns the id of the group holding the marker.
func (a *Archipelago) Marker() int {
	return a.marker
}

// Group returns a live group by id.
func (a *Archipelago) Group(id int) (*IslandGroup, bool) {
	g, ok := a.groups[id]
	return g, ok
}

// Groups returns copies of the live groups in ring order.
func (a *Archipelago) Groups() []IslandGroup {
	out := make([]IslandGroup, 0, len(a.ring))
	for _, id := range a.ring {
		out = append(out, *a.groups[id])
	}
	return out
}

func (a *Archipelago) position(id int) int {
	for i, g := range a.ring {
		if g == id {
			return i
		}
	}
	return -1
}

// neighbours returns the groups on either side of id. With fewer than two
// groups there are none; with two, both sides are the same group.
func (a *Archipelago) neighbours(id int) (left, right int, ok bool) {
	n := len(a.ring)
	if n < 2 {
		return 0, 0, false
	}
	pos := a.position(id)
	return a.ring[(pos+n-1)%n], a.ring[(pos+1)%n], true
}

// distance is the number of clockwise steps from group from to group to.
func (a *Archipelago) distance(from, to int) int {
	n := len(a.ring)
	return (a.position(to) - a.position(from) + n) % n
}

func (a *Archipelago) addStudents(id int, p Pool) error {
	g, ok := a.groups[id]
	if !ok {
		return ruleErr("move to island", ErrInvalidMove, fmt.Sprintf("no island group %d", id))
	}
	g.Students.Add(p)
	a.rec.emit(EntityIsland, g.key(), FieldStudents, g.Students)
	return nil
}

// moveMarker moves the marker clockwise onto group to, at most maxSteps away.
func (a *Archipelago) moveMarker(to, maxSteps int) error {
	if _, ok := a.groups[to]; !ok {
		return ruleErr("move marker", ErrMarkerMovementInvalid, fmt.Sprintf("no island group %d", to))
	}
	d := a.distance(a.marker, to)
	if d < 1 || d > maxSteps {
		return ruleErr("move marker", ErrMarkerMovementInvalid,
			fmt.Sprintf("island %d is %d steps away, allowed 1..%d", to, d, maxSteps))
	}
	a.marker = to
	a.rec.emit(EntityIsland, strconv.Itoa(to), FieldMarker, to)
	return nil
}

// placeNoEntry lays a tile owned by character owner on group id.
func (a *Archipelago) placeNoEntry(id, owner int) error {
	g, ok := a.groups[id]
	if !ok {
		return ruleErr("place no-entry", ErrInvalidMove, fmt.Sprintf("no island group %d", id))
	}
	if g.NoEntry {
		return ruleErr("place no-entry", ErrInvalidMove, fmt.Sprintf("island group %d already blocked", id))
	}
	a.tiles[id] = append(a.tiles[id], owner)
	g.NoEntry = true
	a.rec.emit(EntityIsland, g.key(), FieldNoEntry, true)
	return nil
}

// liftNoEntry takes one tile off group id and returns its owner.
func (a *Archipelago) liftNoEntry(id int) (int, bool) {
	t := a.tiles[id]
	if len(t) == 0 {
		return 0, false
	}
	owner := t[len(t)-1]
	if len(t) == 1 {
		delete(a.tiles, id)
	} else {
		a.tiles[id] = t[:len(t)-1]
	}
	g := a.groups[id]
	if g.NoEntry != (len(t) > 1) {
		g.NoEntry = len(t) > 1
		a.rec.emit(EntityIsland, g.key(), FieldNoEntry, g.NoEntry)
	}
	return owner, true
}

// merge fuses two adjacent groups and returns the surviving id, the lower of the two.
func (a *Archipelago) merge(x, y int) int {
	keep, gone := x, y
	if gone < keep {
		keep, gone = gone, keep
	}
	kg, gg := a.groups[keep], a.groups[gone]
	kg.Students.Add(gg.Students)
	kg.Size += gg.Size
	if t := a.tiles[gone]; len(t) > 0 {
		a.tiles[keep] = append(a.tiles[keep], t...)
		delete(a.tiles, gone)
	}
	blocked := kg.NoEntry
	kg.NoEntry = len(a.tiles[keep]) > 0
	a.parent[gone] = keep

	// The pair is adjacent, so dropping one entry keeps the ring order.
	gp := a.position(gone)
	a.ring = append(a.ring[:gp], a.ring[gp+1:]...)
	delete(a.groups, gone)
	if a.marker == gone {
		a.marker = keep
	}

	a.rec.emit(EntityIsland, strconv.Itoa(gone), FieldMergedInto, keep)
	a.rec.emit(EntityIsland, kg.key(), FieldStudents, kg.Students)
	a.rec.emit(EntityIsland, kg.key(), FieldSize, kg.Size)
	if kg.NoEntry != blocked {
		a.rec.emit(EntityIsland, kg.key(), FieldNoEntry, kg.NoEntry)
	}
	return keep
}

// ids returns the live group ids, ascending.
func (a *Archipelago) ids() []int {
	out := append([]int(nil), a.ring...)
	sort.Ints(out)
	return out
}
