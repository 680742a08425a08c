// Package enumerate implements the candidate enumerator: lazy, odometer-
// ordered traversal of a hole space's cross product with constraint-based
// pruning.
package enumerate

import (
	"fmt"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/patch"
)

// Enumerator lazily produces assignments from a hole space in odometer
// order (the last hole varies fastest), skipping any assignment that
// violates a held constraint. Constraints may be added mid-enumeration;
// already-advanced positions are never revisited, and pruned positions
// never count against a caller's visible progress.
type Enumerator struct {
	names   []string
	domains [][]any
	pos     []int
	done    bool
	cs      *constraint.Set
}

// New constructs an enumerator over space, pruning by cs (a nil cs means
// no constraints). Every hole in space must have a non-empty domain;
// space itself must be non-empty.
func New(space *patch.HoleSpace, cs *constraint.Set) (*Enumerator, error) {
	names := space.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("enumerate: hole space is empty")
	}
	domains := make([][]any, len(names))
	for i, n := range names {
		d, _ := space.Domain(n)
		if len(d) == 0 {
			return nil, fmt.Errorf("enumerate: hole %q has an empty domain", n)
		}
		domains[i] = d
	}
	if cs == nil {
		cs = constraint.NewSet()
	}
	return &Enumerator{names: names, domains: domains, pos: make([]int, len(names)), cs: cs}, nil
}

// AddConstraint adds a constraint to the live set, returning true if it
// was new. Subsequent yields respect the enlarged set immediately;
// positions already yielded (or already skipped) are unaffected.
func (e *Enumerator) AddConstraint(c constraint.Constraint) bool {
	return e.cs.Add(c)
}

// Next returns the next constraint-respecting assignment in odometer
// order, or ok=false once the odometer has overflowed past the first
// hole's last value; whether that happened because the domains were
// exhausted or because every remaining position was pruned makes no
// difference to the caller; both are reported as plain exhaustion.
func (e *Enumerator) Next() (assignment patch.Assignment, ok bool) {
	for {
		if e.done {
			return nil, false
		}
		a := e.current()
		e.advance()
		if !e.cs.Violates(a) {
			return a, true
		}
	}
}

// Exhausted reports whether the enumerator has yielded its last
// candidate (only meaningful after Next has returned ok=false).
func (e *Enumerator) Exhausted() bool {
	return e.done
}

func (e *Enumerator) current() patch.Assignment {
	a := make(patch.Assignment, len(e.names))
	for i, n := range e.names {
		a[n] = e.domains[i][e.pos[i]]
	}
	return a
}

func (e *Enumerator) advance() {
	for i := len(e.pos) - 1; i >= 0; i-- {
		e.pos[i]++
		if e.pos[i] < len(e.domains[i]) {
			return
		}
		e.pos[i] = 0
	}
	e.done = true
}
