// Package constraint implements the tagged constraint representation and
// the extraction rules that turn oracle violation evidence into
// constraints the enumerator can prune on.
package constraint

import (
	"fmt"
	"sort"

	"github.com/simjay/celor/internal/patch"
)

// Constraint is the sealed interface implemented by ForbiddenValue and
// ForbiddenTuple. Violates reports whether an assignment violates it.
type Constraint interface {
	Violates(a patch.Assignment) bool
	// key returns a stable string identity used for deduplication and
	// set-union; two constraints with the same key are considered equal.
	key() string
}

// ForbiddenValue forbids any assignment with A[Hole] == Value.
type ForbiddenValue struct {
	Hole  string
	Value any
}

func (c ForbiddenValue) Violates(a patch.Assignment) bool {
	v, ok := a[c.Hole]
	return ok && equalValue(v, c.Value)
}

func (c ForbiddenValue) key() string {
	return fmt.Sprintf("fv:%s=%v", c.Hole, c.Value)
}

// ForbiddenTuple forbids any assignment with A[Holes[i]] == Values[i] for
// every i. Holes must be distinct and len(Holes) == len(Values) >= 2.
// Construct via NewForbiddenTuple to get the canonical (sorted-by-hole)
// form equality and dedup rely on.
type ForbiddenTuple struct {
	Holes  []string
	Values []any
}

// NewForbiddenTuple canonicalises by sorting the hole/value pairs jointly
// by hole name, so structurally-equal tuples compare equal regardless of
// the caller's input order.
func NewForbiddenTuple(holes []string, values []any) ForbiddenTuple {
	n := len(holes)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return holes[idx[i]] < holes[idx[j]] })

	h := make([]string, n)
	v := make([]any, n)
	for i, k := range idx {
		h[i] = holes[k]
		v[i] = values[k]
	}
	return ForbiddenTuple{Holes: h, Values: v}
}

func (c ForbiddenTuple) Violates(a patch.Assignment) bool {
	for i, h := range c.Holes {
		v, ok := a[h]
		if !ok || !equalValue(v, c.Values[i]) {
			return false
		}
	}
	return true
}

func (c ForbiddenTuple) key() string {
	return fmt.Sprintf("ft:%v=%v", c.Holes, c.Values)
}

// equalValue compares hole values for constraint purposes. Domain values
// are primitives or simple structured combinations of them, so a
// formatted comparison is sufficient and avoids requiring every value
// type to implement comparable.
func equalValue(a, b any) bool {
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Set is an ordered, deduplicated collection of constraints. Zero value is
// usable.
type Set struct {
	order []Constraint
	seen  map[string]bool
}

// NewSet builds a Set from the given constraints, deduplicating.
func NewSet(cs ...Constraint) *Set {
	s := &Set{seen: make(map[string]bool)}
	s.AddAll(cs)
	return s
}

// Add inserts c if not already present, returning true if it was new.
func (s *Set) Add(c Constraint) bool {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	k := c.key()
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.order = append(s.order, c)
	return true
}

// AddAll inserts each constraint, returning the ones that were new.
func (s *Set) AddAll(cs []Constraint) []Constraint {
	var added []Constraint
	for _, c := range cs {
		if s.Add(c) {
			added = append(added, c)
		}
	}
	return added
}

// List returns the constraints in insertion order.
func (s *Set) List() []Constraint {
	out := make([]Constraint, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct constraints held.
func (s *Set) Len() int {
	return len(s.order)
}

// Violates reports whether any held constraint forbids the assignment.
func (s *Set) Violates(a patch.Assignment) bool {
	for _, c := range s.order {
		if c.Violates(a) {
			return true
		}
	}
	return false
}

// ReferencingHoles filters cs to only those constraints whose every
// referenced hole is present in holes (used by the bank to drop
// constraints that reference holes absent from a stored hole space).
func ReferencingHoles(cs []Constraint, holes map[string]bool) []Constraint {
	var out []Constraint
	for _, c := range cs {
		if constraintHolesPresent(c, holes) {
			out = append(out, c)
		}
	}
	return out
}

func constraintHolesPresent(c Constraint, holes map[string]bool) bool {
	switch v := c.(type) {
	case ForbiddenValue:
		return holes[v.Hole]
	case ForbiddenTuple:
		for _, h := range v.Holes {
			if !holes[h] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
