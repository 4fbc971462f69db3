package param

import (
	"fmt"
	"iter"
	"math"
	"sort"

	"stratopt/internal/domain"
)

// Grid is the Cartesian product of parameter domains. Names are ordered
// lexicographically with the first name most significant, and each domain is
// ascending, so enumeration order is deterministic. Points are decoded from
// their index on demand.
type Grid struct {
	names    []string
	values   [][]any
	size     int
	validate func(Set) error
}

// NewGrid builds a grid over specs. validate, when non-nil, filters the
// points yielded by All and Arena.
func NewGrid(specs []Spec, validate func(Set) error) (*Grid, error) {
	sorted := make([]Spec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	g := &Grid{validate: validate, size: 1}
	for i, s := range sorted {
		if i > 0 && s.Name == sorted[i-1].Name {
			return nil, fmt.Errorf("duplicate parameter %q: %w", s.Name, domain.ErrInvalidParameter)
		}
		vals, err := s.Domain()
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 && g.size > math.MaxInt32/len(vals) {
			return nil, fmt.Errorf("grid exceeds %d points: %w", math.MaxInt32, domain.ErrInvalidParameter)
		}
		g.size *= len(vals)
		g.names = append(g.names, s.Name)
		g.values = append(g.values, vals)
	}
	return g, nil
}

// Names returns the parameter names in enumeration order.
func (g *Grid) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Size returns the number of raw points, valid or not.
func (g *Grid) Size() int { return g.size }

// At decodes the i-th raw point by mixed-radix arithmetic.
func (g *Grid) At(i int) Set {
	set := make(Set, len(g.names))
	for k := len(g.names) - 1; k >= 0; k-- {
		n := len(g.values[k])
		set[g.names[k]] = g.values[k][i%n]
		i /= n
	}
	return set
}

// Valid reports whether set passes the grid's validity predicate.
func (g *Grid) Valid(set Set) bool {
	return g.validate == nil || g.validate(set) == nil
}

// All yields the valid points lazily with their raw index.
func (g *Grid) All() iter.Seq2[int, Set] {
	return func(yield func(int, Set) bool) {
		for i := 0; i < g.size; i++ {
			set := g.At(i)
			if !g.Valid(set) {
				continue
			}
			if !yield(i, set) {
				return
			}
		}
	}
}

// Arena materializes the valid points so they can be partitioned by index.
func (g *Grid) Arena() ([]Set, error) {
	var out []Set
	for _, set := range g.All() {
		out = append(out, set)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("grid of %d points has no valid parameter set: %w", g.size, domain.ErrNoValidCandidate)
	}
	return out, nil
}
