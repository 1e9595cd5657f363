package archipelago

// Conquest reports the outcome of evaluating control of an island group.
type Conquest struct {
	Group    int        `json:"group"`
	Blocked  bool       `json:"blocked,omitempty"`
	Previous TowerColor `json:"previous,omitempty"`
	Owner    TowerColor `json:"owner,omitempty"`
	Changed  bool       `json:"changed,omitempty"`
	Merged   []int      `json:"merged,omitempty"`

	// tileOwner is the character whose no-entry tile blocked the conquest.
	tileOwner int
}

// influence sums the students of every colour whose professor is in profs.
func influence(students Pool, profs ProfessorSet) int {
	n := 0
	for c, v := range students {
		if profs.Has(Color(c)) {
			n += v
		}
	}
	return n
}

// conquer evaluates control of group id. factions maps each tower colour in
// play to the professors its players hold together; order fixes iteration.
// On a change of owner, neighbours owned by the same faction are fused in.
func (a *Archipelago) conquer(id int, order []TowerColor, factions map[TowerColor]ProfessorSet) Conquest {
	g := a.groups[id]
	res := Conquest{Group: id, Previous: g.Owner, Owner: g.Owner}

	if owner, ok := a.liftNoEntry(id); ok {
		res.Blocked = true
		res.tileOwner = owner
		return res
	}

	best, winner, tied := 0, NoTower, false
	for _, t := range order {
		n := influence(g.Students, factions[t])
		switch {
		case n > best:
			best, winner, tied = n, t, false
		case n == best && n > 0:
			tied = true
		}
	}
	if best == 0 || tied || winner == g.Owner {
		return res
	}

	g.Owner = winner
	res.Owner = winner
	res.Changed = true
	a.rec.emit(EntityIsland, g.key(), FieldOwner, winner)

	left, right, ok := a.neighbours(id)
	if !ok {
		return res
	}
	cur := id
	if a.groups[right].Owner == winner {
		res.Merged = append(res.Merged, right)
		cur = a.merge(cur, right)
	}
	if left != right {
		if lg, live := a.groups[left]; live && lg.Owner == winner {
			res.Merged = append(res.Merged, left)
			cur = a.merge(cur, left)
		}
	}
	res.Group = cur
	return res
}
