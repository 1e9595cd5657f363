package archipelago

// Board is a player's school: entrance, dining room, professors, towers and coins.
type Board struct {
	owner      string
	Entrance   BoundedPool
	Dining     BoundedPool
	Professors ProfessorSet
	Tower      TowerColor
	Coins      int

	// milestones is the per-colour count of coin milestones already paid out.
	// It only grows, so removing and re-adding students never pays twice.
	milestones [NumColors]int
}

func newBoard(owner string, tower TowerColor, entranceSize, diningCapacity int) *Board {
	return &Board{
		owner:    owner,
		Entrance: BoundedPool{Capacity: entranceSize},
		Dining:   BoundedPool{PerColor: diningCapacity},
		Tower:    tower,
	}
}

// DiningCount returns the students of colour c in the dining room.
func (b *Board) DiningCount(c Color) int {
	return b.Dining.Students[c]
}

// HasProfessor reports whether this board holds the professor of colour c.
func (b *Board) HasProfessor(c Color) bool {
	return b.Professors.Has(c)
}

func (b *Board) addToEntrance(p Pool, rec *recorder) error {
	if err := b.Entrance.Add(p); err != nil {
		return err
	}
	rec.emit(EntityBoard, b.owner, FieldEntrance, b.Entrance.Students)
	return nil
}

func (b *Board) removeFromEntrance(p Pool, rec *recorder) error {
	if err := b.Entrance.Remove(p); err != nil {
		return err
	}
	rec.emit(EntityBoard, b.owner, FieldEntrance, b.Entrance.Students)
	return nil
}

func (b *Board) addToDining(p Pool, rec *recorder) error {
	if err := b.Dining.Add(p); err != nil {
		return err
	}
	rec.emit(EntityBoard, b.owner, FieldDining, b.Dining.Students)
	return nil
}

func (b *Board) removeFromDining(p Pool, rec *recorder) error {
	if err := b.Dining.Remove(p); err != nil {
		return err
	}
	rec.emit(EntityBoard, b.owner, FieldDining, b.Dining.Students)
	return nil
}

func (b *Board) addProfessor(c Color, rec *recorder) {
	b.Professors = b.Professors.With(c)
	rec.emit(EntityBoard, b.owner, FieldProfessors, b.Professors)
}

func (b *Board) removeProfessor(c Color, rec *recorder) {
	b.Professors = b.Professors.Without(c)
	rec.emit(EntityBoard, b.owner, FieldProfessors, b.Professors)
}

// accrueCoins pays one coin for every milestone reached in the dining room
// that has not been paid before, bounded by the treasury. It returns the coins granted.
func (b *Board) accrueCoins(milestone int, treasury *int, rec *recorder) int {
	due := 0
	for c := range b.milestones {
		reached := b.Dining.Students[c] / milestone
		if reached > b.milestones[c] {
			due += reached - b.milestones[c]
			b.milestones[c] = reached
		}
	}
	if due > *treasury {
		due = *treasury
	}
	if due == 0 {
		return 0
	}
	*treasury -= due
	b.Coins += due
	rec.emit(EntityBoard, b.owner, FieldCoins, b.Coins)
	return due
}

func (b *Board) spendCoins(n int, rec *recorder) {
	b.Coins -= n
	rec.emit(EntityBoard, b.owner, FieldCoins, b.Coins)
}
