package archipelago

import (
	"fmt"
	"strings"
)

// Pool counts students per colour. The zero value is an empty pool.
type Pool [NumColors]int

// PoolOf builds a pool holding n students of colour c.
func PoolOf(c Color, n int) Pool {
	var p Pool
	p[c] = n
	return p
}

// Total returns the number of students in the pool.
func (p Pool) Total() int {
	n := 0
	for _, v := range p {
		n += v
	}
	return n
}

// Get returns the number of students of colour c.
func (p Pool) Get(c Color) int {
	return p[c]
}

// IsEmpty reports whether the pool holds no students.
func (p Pool) IsEmpty() bool {
	return p.Total() == 0
}

// Valid reports whether every count is non-negative.
func (p Pool) Valid() bool {
	for _, v := range p {
		if v < 0 {
			return false
		}
	}
	return true
}

// Contains reports whether every colour count of o fits inside p.
func (p Pool) Contains(o Pool) bool {
	for c := range p {
		if o[c] > p[c] {
			return false
		}
	}
	return true
}

// Colors returns the colours present in the pool, in index order.
func (p Pool) Colors() []Color {
	var out []Color
	for c, v := range p {
		if v > 0 {
			out = append(out, Color(c))
		}
	}
	return out
}

// Plus returns the sum of two pools.
func (p Pool) Plus(o Pool) Pool {
	for c := range p {
		p[c] += o[c]
	}
	return p
}

// Add merges o into p.
func (p *Pool) Add(o Pool) {
	*p = p.Plus(o)
}

// Remove takes o out of p. It fails without mutating when p does not contain o.
func (p *Pool) Remove(o Pool) error {
	if !o.Valid() {
		return ruleErr("remove students", ErrInvalidMove, "negative student count")
	}
	if !p.Contains(o) {
		return ruleErr("remove students", ErrInvalidMove, fmt.Sprintf("%s not available in %s", o, *p))
	}
	for c := range p {
		p[c] -= o[c]
	}
	return nil
}

// String renders the pool as "red:2 blue:1", or "empty".
func (p Pool) String() string {
	var parts []string
	for c, v := range p {
		if v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", Color(c), v))
		}
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

// BoundedPool is a pool with a per-colour and/or total capacity. A zero limit
// means that dimension is unbounded.
type BoundedPool struct {
	Students Pool `json:"students"`
	PerColor int  `json:"per_color,omitempty"`
	Capacity int  `json:"capacity,omitempty"`
}

// Fits reports whether o can be added without exceeding a limit.
func (b BoundedPool) Fits(o Pool) bool {
	sum := b.Students.Plus(o)
	if b.Capacity > 0 && sum.Total() > b.Capacity {
		return false
	}
	if b.PerColor > 0 {
		for _, v := range sum {
			if v > b.PerColor {
				return false
			}
		}
	}
	return true
}

// Add merges o into the pool, failing without mutating if a limit would be exceeded.
func (b *BoundedPool) Add(o Pool) error {
	if !o.Valid() {
		return ruleErr("add students", ErrInvalidMove, "negative student count")
	}
	if !b.Fits(o) {
		return ruleErr("add students", ErrInvalidMove, fmt.Sprintf("%s exceeds capacity", o))
	}
	b.Students.Add(o)
	return nil
}

// Remove takes o out of the pool.
func (b *BoundedPool) Remove(o Pool) error {
	return b.Students.Remove(o)
}

// Free returns the remaining total capacity, or -1 when unbounded.
func (b BoundedPool) Free() int {
	if b.Capacity == 0 {
		return -1
	}
	return b.Capacity - b.Students.Total()
}
