package archipelago

import (
	"fmt"
	"math/rand"
)

// Bag supplies students. Draw returns fewer than n students together with
// ErrBagEmpty once the supply is exhausted.
type Bag interface {
	Draw(n int) (Pool, error)
	Remaining() int
}

// RandomBag draws uniformly from a finite pool of students using a seeded source.
type RandomBag struct {
	contents Pool
	rng      *rand.Rand
}

// NewRandomBag creates a bag holding contents, drawing with the given seed.
func NewRandomBag(contents Pool, seed int64) *RandomBag {
	return &RandomBag{contents: contents, rng: rand.New(rand.NewSource(seed))}
}

// Draw removes up to n random students from the bag.
func (b *RandomBag) Draw(n int) (Pool, error) {
	var out Pool
	for i := 0; i < n; i++ {
		total := b.contents.Total()
		if total == 0 {
			return out, &RuleError{Op: "draw students", Err: ErrBagEmpty, Detail: fmt.Sprintf("drew %d of %d", i, n)}
		}
		pick := b.rng.Intn(total)
		for c := range b.contents {
			if pick < b.contents[c] {
				b.contents[c]--
				out[c]++
				break
			}
			pick -= b.contents[c]
		}
	}
	return out, nil
}

// Remaining returns the number of students left in the bag.
func (b *RandomBag) Remaining() int {
	return b.contents.Total()
}

// Contents returns a copy of the bag's remaining students.
func (b *RandomBag) Contents() Pool {
	return b.contents
}
