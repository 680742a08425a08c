package constraint

import (
	"testing"

	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
	"github.com/stretchr/testify/assert"
)

func TestExtractForbidValue(t *testing.T) {
	vs := []oracle.Violation{{
		Code: "bad_replicas",
		Evidence: oracle.Evidence{
			ForbidValue: []oracle.ForbidValueHint{{Hole: "replicas", Value: 2}},
		},
	}}
	cs := Extract(vs, map[string]bool{"replicas": true})
	assert.Equal(t, []Constraint{ForbiddenValue{Hole: "replicas", Value: 2}}, cs)
}

func TestExtractForbidTupleCanonicalised(t *testing.T) {
	vs := []oracle.Violation{{
		Code: "bad_combo",
		Evidence: oracle.Evidence{
			ForbidTuple: []oracle.ForbidTupleHint{{
				Holes:  []string{"env", "replicas"},
				Values: []any{"prod", 2},
			}},
		},
	}}
	cs := Extract(vs, map[string]bool{"env": true, "replicas": true})
	assert.Equal(t, []Constraint{
		NewForbiddenTuple([]string{"replicas", "env"}, []any{2, "prod"}),
	}, cs)
}

func TestExtractDropsAbsentHoles(t *testing.T) {
	vs := []oracle.Violation{{
		Evidence: oracle.Evidence{
			ForbidValue: []oracle.ForbidValueHint{{Hole: "ghost", Value: 1}},
		},
	}}
	cs := Extract(vs, map[string]bool{"replicas": true})
	assert.Empty(t, cs)
}

func TestExtractDedups(t *testing.T) {
	vs := []oracle.Violation{
		{Evidence: oracle.Evidence{ForbidValue: []oracle.ForbidValueHint{{Hole: "replicas", Value: 2}}}},
		{Evidence: oracle.Evidence{ForbidValue: []oracle.ForbidValueHint{{Hole: "replicas", Value: 2}}}},
	}
	cs := Extract(vs, map[string]bool{"replicas": true})
	assert.Len(t, cs, 1)
}

func TestForbiddenTupleCanonicalEquality(t *testing.T) {
	a := NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2})
	b := NewForbiddenTuple([]string{"replicas", "env"}, []any{2, "prod"})
	assert.Equal(t, a, b)
	assert.Equal(t, a.key(), b.key())
}

func TestSetAddDedupsAcrossCanonicalForm(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Add(NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2})))
	assert.False(t, s.Add(NewForbiddenTuple([]string{"replicas", "env"}, []any{2, "prod"})))
	assert.Equal(t, 1, s.Len())
}

func TestSetViolates(t *testing.T) {
	s := NewSet(ForbiddenValue{Hole: "env", Value: "prod"})
	assert.True(t, s.Violates(patch.Assignment{"env": "prod"}))
	assert.False(t, s.Violates(patch.Assignment{"env": "staging"}))
}

func TestReferencingHoles(t *testing.T) {
	cs := []Constraint{
		ForbiddenValue{Hole: "a", Value: 1},
		ForbiddenValue{Hole: "b", Value: 1},
		NewForbiddenTuple([]string{"a", "c"}, []any{1, 2}),
	}
	out := ReferencingHoles(cs, map[string]bool{"a": true, "b": true})
	assert.Equal(t, []Constraint{cs[0], cs[1]}, out)
}
