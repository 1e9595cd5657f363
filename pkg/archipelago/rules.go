package archipelago

import "fmt"

// MaxForMovements caps the students carried by a single move intent.
const MaxForMovements = 3

const (
	// NumIslands is the number of islands at setup.
	NumIslands = 12
	// NumberOfCharacters is how many characters are drawn when coins are enabled.
	NumberOfCharacters = 3
	// MaxCardValue is the highest assistant card value; hands hold 1..MaxCardValue.
	MaxCardValue = 10
)

// Rules holds the tunable constants of a match. Maps are keyed by player count.
type Rules struct {
	EntranceSize          map[int]int
	CloudCapacity         map[int]int
	StudentsPerTurn       map[int]int
	Towers                map[int]int
	StudentsPerColor      int // in the bag after setup
	SetupStudentsPerColor int // placed on the islands at setup
	DiningCapacity        int // per colour
	CoinMilestone         int
	Treasury              int
	StartingCoins         int
	MinIslandGroups       int // the match ends when this many groups remain
}

// DefaultRules returns the standard constants.
func DefaultRules() Rules {
	return Rules{
		EntranceSize:          map[int]int{2: 7, 3: 9, 4: 7},
		CloudCapacity:         map[int]int{2: 3, 3: 4, 4: 3},
		StudentsPerTurn:       map[int]int{2: 3, 3: 4, 4: 3},
		Towers:                map[int]int{2: 8, 3: 6, 4: 8},
		StudentsPerColor:      24,
		SetupStudentsPerColor: 2,
		DiningCapacity:        10,
		CoinMilestone:         3,
		Treasury:              20,
		StartingCoins:         1,
		MinIslandGroups:       3,
	}
}

// Validate checks the rules can host a match of n players.
func (r Rules) Validate(n int) error {
	if n < 2 || n > 4 {
		return fmt.Errorf("unsupported player count %d", n)
	}
	for name, m := range map[string]map[int]int{
		"entrance_size":     r.EntranceSize,
		"cloud_capacity":    r.CloudCapacity,
		"students_per_turn": r.StudentsPerTurn,
		"towers":            r.Towers,
	} {
		if m[n] <= 0 {
			return fmt.Errorf("%s not configured for %d players", name, n)
		}
	}
	if r.StudentsPerTurn[n] > r.CloudCapacity[n] || r.CloudCapacity[n] > r.EntranceSize[n] {
		return fmt.Errorf("cloud capacity must lie between students per turn and entrance size")
	}
	if r.DiningCapacity <= 0 || r.CoinMilestone <= 0 {
		return fmt.Errorf("dining capacity and coin milestone must be positive")
	}
	if r.SetupStudentsPerColor*NumColors > NumIslands-2 {
		return fmt.Errorf("setup pool does not fit on %d islands", NumIslands-2)
	}
	return nil
}
