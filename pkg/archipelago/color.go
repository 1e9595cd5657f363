package archipelago

import "fmt"

// Color is the faction colour of a student and of its professor.
type Color int

const (
	Yellow Color = iota
	Blue
	Green
	Red
	Pink
)

// NumColors is the number of student colours.
const NumColors = 5

var colorNames = [NumColors]string{"yellow", "blue", "green", "red", "pink"}

func (c Color) String() string {
	if c >= 0 && int(c) < NumColors {
		return colorNames[c]
	}
	return fmt.Sprintf("color_%d", int(c))
}

// Valid reports whether c is one of the five colours.
func (c Color) Valid() bool {
	return c >= 0 && int(c) < NumColors
}

// ParseColor converts a colour name to a Color.
func ParseColor(s string) (Color, bool) {
	for i, name := range colorNames {
		if name == s {
			return Color(i), true
		}
	}
	return 0, false
}

// AllColors returns the colours in index order.
func AllColors() []Color {
	return []Color{Yellow, Blue, Green, Red, Pink}
}

// TowerColor identifies a faction. Players sharing a tower colour are teammates.
type TowerColor string

const (
	NoTower TowerColor = ""
	White   TowerColor = "white"
	Black   TowerColor = "black"
	Grey    TowerColor = "grey"
)

// towersForSeats returns the tower colour of every seat. Four-player games are
// played in teams: seats 0 and 2 against seats 1 and 3.
func towersForSeats(n int) []TowerColor {
	switch n {
	case 2:
		return []TowerColor{White, Black}
	case 3:
		return []TowerColor{White, Black, Grey}
	case 4:
		return []TowerColor{White, Black, White, Black}
	}
	return nil
}

// ProfessorSet is a bitset of professors, one bit per colour.
type ProfessorSet uint8

// Has reports whether the professor of colour c is in the set.
func (s ProfessorSet) Has(c Color) bool {
	return s&(1<<uint(c)) != 0
}

// With returns the set with c added.
func (s ProfessorSet) With(c Color) ProfessorSet {
	return s | 1<<uint(c)
}

// Without returns the set with c removed.
func (s ProfessorSet) Without(c Color) ProfessorSet {
	return s &^ (1 << uint(c))
}

// Count returns the number of professors in the set.
func (s ProfessorSet) Count() int {
	n := 0
	for c := 0; c < NumColors; c++ {
		if s.Has(Color(c)) {
			n++
		}
	}
	return n
}
