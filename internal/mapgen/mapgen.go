// Package mapgen derives the base resource layout of the 24x24 world from a
// single integer seed. The layout is a pure function of the seed: the server
// recomputes it for collision and harvest validation, and clients mirror the
// same arithmetic for rendering, so every operation here must stay bit-exact
// (32-bit unsigned wraparound, fixed ratio order, fixed seed interpretation).
package mapgen

import "math"

const (
	// GridSize is the world edge length in cells.
	GridSize = 24
	// CellCount is the total number of cells in the world.
	CellCount = GridSize * GridSize

	// goldenRatio drives the cascading category split.
	goldenRatio = 0.61803

	// DefaultSeed replaces a zero seed; xorshift32 has a fixed point at zero.
	DefaultSeed uint32 = 0x9E3779B9
)

// Resource is the base category of a cell.
type Resource string

const (
	Open    Resource = "open"
	Wood    Resource = "wood"
	Stone   Resource = "stone"
	Gold    Resource = "gold"
	Diamond Resource = "diamond"
)

// Valid reports whether r names a known resource category.
func (r Resource) Valid() bool {
	switch r {
	case Open, Wood, Stone, Gold, Diamond:
		return true
	}
	return false
}

// categories in cascade order. Open is allotted first, so any tail cells left
// over by rounding stay open without special handling.
var categories = [...]Resource{Open, Wood, Stone, Gold, Diamond}

// rng is the xorshift32 generator used for the cell permutation.
type rng struct{ s uint32 }

func newRNG(seed uint32) *rng {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &rng{s: seed}
}

func (r *rng) next() uint32 {
	s := r.s
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	r.s = s
	return s
}

// Map is the fully generated layout for one seed. It is immutable after
// Generate; callers cache one per current seed and rebuild on seed change.
type Map struct {
	Seed  uint32
	cells [CellCount]Resource
}

// Generate builds the full layout for seed.
func Generate(seed uint32) *Map {
	m := &Map{Seed: seed}
	for i := range m.cells {
		m.cells[i] = Open
	}

	r := newRNG(seed)

	// Fisher-Yates permutation of cell indices.
	var perm [CellCount]int
	for i := range perm {
		perm[i] = i
	}
	for i := CellCount - 1; i > 0; i-- {
		j := int(r.next() % uint32(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}

	// Golden-ratio cascade: each category takes round(phi * remaining) cells
	// of the permutation, in order. Loop bounds are clamped so rounding can
	// never run past the end.
	idx := 0
	remaining := CellCount
	for _, cat := range categories {
		count := int(math.Round(goldenRatio * float64(remaining)))
		if count > remaining {
			count = remaining
		}
		for k := 0; k < count && idx < CellCount; k++ {
			m.cells[perm[idx]] = cat
			idx++
		}
		remaining = CellCount - idx
		if remaining <= 0 {
			break
		}
	}
	return m
}

// At returns the base resource of cell (x, y). Out-of-bounds cells are open.
func (m *Map) At(x, y int) Resource {
	if x < 0 || x >= GridSize || y < 0 || y >= GridSize {
		return Open
	}
	return m.cells[y*GridSize+x]
}

// Counts returns the number of cells per category.
func (m *Map) Counts() map[Resource]int {
	c := make(map[Resource]int, len(categories))
	for _, r := range m.cells {
		c[r]++
	}
	return c
}

// ResourceAt is the one-shot form of Generate(seed).At(x, y).
func ResourceAt(seed uint32, x, y int) Resource {
	return Generate(seed).At(x, y)
}
