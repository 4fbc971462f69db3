// Package param describes tunable strategy parameters: their domains, the
// concrete sets a strategy is built from, and the Cartesian grid searched by
// the optimizer.
package param

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"stratopt/internal/domain"
)

// Kind is the value type of a parameter.
type Kind int

const (
	Int Kind = iota
	Float
	String
	Bool
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Spec
// ---------------------------------------------------------------------------

// Spec declares one tunable parameter and its search domain. When Values is
// non-empty it is the domain; otherwise numeric parameters range from Min to
// Max inclusive by Step.
type Spec struct {
	Name    string
	Kind    Kind
	Default any
	Min     float64
	Max     float64
	Step    float64
	Values  []any
}

// Range overrides the search domain of a Spec, typically from configuration.
type Range struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Step   float64 `yaml:"step"`
	Values []any   `yaml:"values"`
}

// Domain enumerates the spec's values in ascending order without duplicates.
func (s Spec) Domain() ([]any, error) {
	var raw []any
	switch {
	case len(s.Values) > 0:
		for _, v := range s.Values {
			c, err := Coerce(s.Kind, v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", s.Name, err)
			}
			raw = append(raw, c)
		}
	case s.Kind == Int || s.Kind == Float:
		if s.Step <= 0 || s.Max < s.Min {
			return nil, fmt.Errorf("parameter %s: range [%v, %v] step %v: %w",
				s.Name, s.Min, s.Max, s.Step, domain.ErrInvalidParameter)
		}
		n := int(math.Floor((s.Max-s.Min)/s.Step+1e-9)) + 1
		for i := 0; i < n; i++ {
			v := round(s.Min + float64(i)*s.Step)
			if s.Kind == Int {
				raw = append(raw, int(math.Round(v)))
			} else {
				raw = append(raw, v)
			}
		}
	case s.Kind == Bool:
		raw = []any{false, true}
	case s.Default != nil:
		c, err := Coerce(s.Kind, s.Default)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", s.Name, err)
		}
		raw = []any{c}
	default:
		return nil, fmt.Errorf("parameter %s: empty domain: %w", s.Name, domain.ErrInvalidParameter)
	}

	sort.SliceStable(raw, func(i, j int) bool { return less(raw[i], raw[j]) })
	out := raw[:0:0]
	for i, v := range raw {
		if i > 0 && v == raw[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Override applies ranges to specs by name. Unknown names are rejected.
func Override(specs []Spec, ranges map[string]Range) ([]Spec, error) {
	out := make([]Spec, len(specs))
	copy(out, specs)
	idx := make(map[string]int, len(out))
	for i, s := range out {
		idx[s.Name] = i
	}
	for name, r := range ranges {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q: %w", name, domain.ErrInvalidParameter)
		}
		if len(r.Values) > 0 {
			out[i].Values = r.Values
			continue
		}
		out[i].Values = nil
		out[i].Min, out[i].Max, out[i].Step = r.Min, r.Max, r.Step
	}
	return out, nil
}

// Fixed narrows every spec's domain to the single value in set, falling back
// to the spec default.
func Fixed(specs []Spec, set Set) []Spec {
	out := make([]Spec, len(specs))
	for i, s := range specs {
		v, ok := set[s.Name]
		if !ok {
			v = s.Default
		}
		s.Values = []any{v}
		out[i] = s
	}
	return out
}

// Pin narrows the domain of each spec named in set to that single value,
// coerced to the spec's kind. Names not in specs are rejected.
func Pin(specs []Spec, set Set) ([]Spec, error) {
	resolved, err := Resolve(specs, set)
	if err != nil {
		return nil, err
	}
	out := make([]Spec, len(specs))
	for i, s := range specs {
		if _, ok := set[s.Name]; ok {
			s.Values = []any{resolved[s.Name]}
		}
		out[i] = s
	}
	return out, nil
}

// Defaults returns the set of default values declared by specs.
func Defaults(specs []Spec) Set {
	set := make(Set, len(specs))
	for _, s := range specs {
		if s.Default != nil {
			set[s.Name] = s.Default
		}
	}
	return set
}

// Resolve merges overrides on top of the spec defaults, coercing every value
// to its declared kind.
func Resolve(specs []Spec, overrides Set) (Set, error) {
	known := make(map[string]Spec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}
	set := Defaults(specs)
	for name, v := range overrides {
		s, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q: %w", name, domain.ErrInvalidParameter)
		}
		c, err := Coerce(s.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		set[name] = c
	}
	return set, nil
}

// ---------------------------------------------------------------------------
// Set
// ---------------------------------------------------------------------------

// Set is a concrete assignment of parameter values.
type Set map[string]any

// Names returns the parameter names in lexicographic order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the set as "a=1 b=2.5" in name order.
func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Names() {
		parts = append(parts, k+"="+format(s[k]))
	}
	return strings.Join(parts, " ")
}

// JSON returns the canonical JSON encoding; encoding/json sorts map keys.
func (s Set) JSON() string {
	b, err := json.Marshal(map[string]any(s))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Clone returns a shallow copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Int returns the named integer parameter.
func (s Set) Int(name string) (int, error) {
	v, ok := s[name]
	if !ok {
		return 0, missing(name)
	}
	c, err := Coerce(Int, v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return c.(int), nil
}

// Float returns the named float parameter.
func (s Set) Float(name string) (float64, error) {
	v, ok := s[name]
	if !ok {
		return 0, missing(name)
	}
	c, err := Coerce(Float, v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return c.(float64), nil
}

// Str returns the named string parameter.
func (s Set) Str(name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", missing(name)
	}
	c, err := Coerce(String, v)
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w", name, err)
	}
	return c.(string), nil
}

// Bool returns the named boolean parameter.
func (s Set) Bool(name string) (bool, error) {
	v, ok := s[name]
	if !ok {
		return false, missing(name)
	}
	c, err := Coerce(Bool, v)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %w", name, err)
	}
	return c.(bool), nil
}

// Parse reads "name=value" assignments, as given on a command line, keeping
// values as strings for later coercion.
func Parse(assignments []string) (Set, error) {
	set := make(Set, len(assignments))
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter assignment %q: %w", a, domain.ErrInvalidParameter)
		}
		set[name] = strings.TrimSpace(value)
	}
	return set, nil
}

// ---------------------------------------------------------------------------
// Coercion
// ---------------------------------------------------------------------------

// Coerce converts v, which may come from YAML, JSON or a command line, to the
// Go type of kind: int, float64, string or bool.
func Coerce(kind Kind, v any) (any, error) {
	switch kind {
	case Int:
		switch x := v.(type) {
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case uint64:
			return int(x), nil
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				return nil, badValue(kind, v)
			}
			return int(x), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				return nil, badValue(kind, v)
			}
			return n, nil
		}
	case Float:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, badValue(kind, v)
			}
			return f, nil
		}
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, badValue(kind, v)
			}
			return b, nil
		}
	}
	return nil, badValue(kind, v)
}

func badValue(kind Kind, v any) error {
	return fmt.Errorf("%v (%T) is not a valid %s: %w", v, v, kind, domain.ErrInvalidParameter)
}

func missing(name string) error {
	return fmt.Errorf("parameter %s not set: %w", name, domain.ErrInvalidParameter)
}

// round trims accumulated floating-point error from generated range values.
func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func less(a, b any) bool {
	switch x := a.(type) {
	case int:
		if y, ok := b.(int); ok {
			return x < y
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	case bool:
		if y, ok := b.(bool); ok {
			return !x && y
		}
	}
	return format(a) < format(b)
}

func format(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
