// Package strategy defines the Strategy interface for signal-generating
// trading strategies, the Factory that builds them from parameter sets, and a
// Registry for looking factories up by kind.
package strategy

import (
	"fmt"
	"sort"

	"stratopt/internal/domain"
	"stratopt/internal/param"
)

// Strategy turns price history into target positions. Implementations are
// pure: GenerateSignals keeps no state between calls, and the target at bar t
// depends only on bars 0..t.
type Strategy interface {
	// Name returns the strategy kind.
	Name() string

	// Legs returns the number of price series GenerateSignals expects.
	Legs() int

	// GenerateSignals returns one target per bar of the (aligned) legs.
	GenerateSignals(legs ...*domain.PriceSeries) (*domain.SignalSeries, error)
}

// Factory builds a Strategy from a parameter set and describes the parameter
// space the optimizer may search.
type Factory interface {
	// Kind returns the unique identifier for this strategy family.
	Kind() string

	// Legs returns the number of instruments the strategy trades.
	Legs() int

	// ParameterSpace returns the tunable parameters with their default
	// search domains.
	ParameterSpace() []param.Spec

	// Validate reports whether set satisfies the strategy's constraints,
	// wrapping domain.ErrInvalidParameter when it does not.
	Validate(set param.Set) error

	// New constructs a strategy from set.
	New(set param.Set) (Strategy, error)
}

// CheckLegs verifies that legs has the expected count, that every leg has at
// least min bars, and that all legs share timestamps.
func CheckLegs(want, min int, legs []*domain.PriceSeries) error {
	if len(legs) != want {
		return fmt.Errorf("got %d price series, want %d: %w", len(legs), want, domain.ErrInvalidParameter)
	}
	for _, l := range legs {
		if l == nil || l.Len() == 0 {
			return fmt.Errorf("empty price series: %w", domain.ErrInsufficientData)
		}
		if l.Len() < min {
			return fmt.Errorf("%s has %d bars, need %d: %w", l.Symbol(), l.Len(), min, domain.ErrInsufficientData)
		}
	}
	for _, l := range legs[1:] {
		if !legs[0].SameTimes(l) {
			return fmt.Errorf("%s and %s timestamps differ: %w", legs[0].Symbol(), l.Symbol(), domain.ErrMisalignedData)
		}
	}
	return nil
}

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry, keyed by its Kind().
func (r *Registry) Register(f Factory) {
	r.factories[f.Kind()] = f
}

// Get retrieves a factory by kind. The second return value indicates whether
// the factory was found.
func (r *Registry) Get(kind string) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

// Lookup is Get with an error naming the known kinds.
func (r *Registry) Lookup(kind string) (Factory, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v): %w", kind, r.List(), domain.ErrInvalidParameter)
	}
	return f, nil
}

// List returns a sorted slice of all registered strategy kinds.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
