package synth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArtifact is a minimal in-memory stand-in for a manifest, used to
// exercise the synthesizer without depending on the YAML executor.
type fakeArtifact struct {
	fields map[string]any
}

func newFakeArtifact(fields map[string]any) *fakeArtifact {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &fakeArtifact{fields: cp}
}

func (f *fakeArtifact) Clone() oracle.Artifact { return newFakeArtifact(f.fields) }

func (f *fakeArtifact) Apply(p patch.Patch) (oracle.Artifact, error) {
	next := newFakeArtifact(f.fields)
	for _, op := range p.Ops {
		switch op.Op {
		case "EnsureReplicas":
			v, ok := op.Arg("replicas")
			if !ok {
				return nil, fmt.Errorf("EnsureReplicas: missing replicas arg")
			}
			next.fields["replicas"] = v.(patch.Concrete).V
		case "EnsureLabel":
			keyArg, _ := op.Arg("key")
			valArg, _ := op.Arg("value")
			key, _ := keyArg.(patch.Concrete).V.(string)
			next.fields[key] = valArg.(patch.Concrete).V
		case "Explode":
			return nil, fmt.Errorf("Explode: domain executor refuses this op")
		default:
			return nil, fmt.Errorf("unknown opcode %q", op.Op)
		}
	}
	return next, nil
}

// policyOracle implements: if env=prod then replicas must be in {3,4,5}.
type policyOracle struct{}

func (policyOracle) ID() string { return "policy" }

func (policyOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	f := a.(*fakeArtifact)
	env, _ := f.fields["env"].(string)
	replicas, _ := f.fields["replicas"].(int)
	if env != "prod" {
		return nil, nil
	}
	if replicas == 3 || replicas == 4 || replicas == 5 {
		return nil, nil
	}
	return []oracle.Violation{{
		Code:    "bad_replicas_for_prod",
		Message: "prod requires replicas in {3,4,5}",
		Evidence: oracle.Evidence{
			ForbidTuple: []oracle.ForbidTupleHint{{
				Holes:  []string{"env", "replicas"},
				Values: []any{"prod", replicas},
			}},
		},
	}}, nil
}

// policyOracleNoHints applies the same rule as policyOracle but never
// attaches evidence, modelling an oracle that flags a violation without
// offering the extractor anything to prune on.
type policyOracleNoHints struct{}

func (policyOracleNoHints) ID() string { return "policy" }

func (policyOracleNoHints) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	f := a.(*fakeArtifact)
	env, _ := f.fields["env"].(string)
	replicas, _ := f.fields["replicas"].(int)
	if env == "prod" && replicas != 3 && replicas != 4 && replicas != 5 {
		return []oracle.Violation{{Code: "bad_replicas_for_prod", Message: "prod requires replicas in {3,4,5}"}}, nil
	}
	return nil, nil
}

func policyTemplate() patch.Template {
	return patch.Template{Ops: []patch.Operation{
		{Op: "EnsureReplicas", Args: []patch.Arg{{Name: "replicas", Value: patch.HoleRef{Name: "replicas"}}}},
		{Op: "EnsureLabel", Args: []patch.Arg{
			{Name: "key", Value: patch.Concrete{V: "env"}},
			{Name: "value", Value: patch.HoleRef{Name: "env"}},
		}},
	}}
}

func defaultBudgets() Budgets {
	return Budgets{MaxCandidates: 100, MaxIters: 10, Timeout: time.Second}
}

// Scenario A: artifact already compliant.
func TestScenarioA_NoViolationsInitially(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 3, "env": "prod"})
	s := New(oracle.NewVerifier(policyOracle{}))
	out := s.Run(context.Background(), artifact, policyTemplate(),
		patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod"),
		nil, defaultBudgets())
	assert.Equal(t, NoViolationsInitially, out.Kind)
	assert.Same(t, artifact, out.Artifact)
}

// Scenario B: single forbid_tuple learned, first pruned candidate
// succeeds.
func TestScenarioB_SingleForbidTuple(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod")
	s := New(oracle.NewVerifier(policyOracle{}))

	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil, defaultBudgets())

	require.Equal(t, Success, out.Kind)
	assert.Equal(t, patch.Assignment{"replicas": 2, "env": "staging"}, out.Assignment)
	assert.Equal(t, 1, out.CandidatesTried)
	require.Len(t, out.Constraints, 1)
	assert.Equal(t,
		constraint.NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2}),
		out.Constraints[0])

	// Success implies the verifier accepts the returned artifact.
	v := oracle.NewVerifier(policyOracle{})
	assert.Empty(t, v.Verify(out.Artifact))
}

// Scenario C: with a single-cell hole space, the learned constraint
// prunes the only candidate and the enumerator exhausts.
func TestScenarioC_Unsat(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2).Add("env", "prod")
	s := New(oracle.NewVerifier(policyOracle{}))

	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil, defaultBudgets())

	require.Equal(t, Unsat, out.Kind)
	assert.Len(t, out.Constraints, 1)
}

// Scenario D: budget exhausted after exactly one failing candidate.
func TestScenarioD_BudgetExhausted(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5, 6, 7, 8, 9).Add("env", "prod")
	s := New(oracle.NewVerifier(policyOracleNoHints{}))

	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil,
		Budgets{MaxCandidates: 1, MaxIters: 10, Timeout: time.Second})

	require.Equal(t, BudgetExhausted, out.Kind)
	assert.Equal(t, 1, out.CandidatesTried)
	assert.Empty(t, out.Constraints)
}

// Scenario E half: feeding a prior ForbiddenTuple in C0 prunes the bad
// cell immediately, succeeding in exactly one candidate.
func TestScenarioE_PriorConstraintPrunesImmediately(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod")
	initial := constraint.NewSet(constraint.NewForbiddenTuple([]string{"env", "replicas"}, []any{"prod", 2}))
	s := New(oracle.NewVerifier(policyOracle{}))

	out := s.Run(context.Background(), artifact, policyTemplate(), space, initial, defaultBudgets())

	require.Equal(t, Success, out.Kind)
	assert.Equal(t, 1, out.CandidatesTried)
	assert.Equal(t, patch.Assignment{"replicas": 2, "env": "staging"}, out.Assignment)
}

func TestTimeout(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2).Add("env", "prod")
	base := time.Unix(0, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		// First call establishes "start"; every later call jumps well
		// past the deadline, forcing a deterministic Timeout.
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}
	s := New(oracle.NewVerifier(policyOracle{}), WithClock(clock))
	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil,
		Budgets{MaxCandidates: 1000, MaxIters: 1000, Timeout: time.Millisecond})
	assert.Equal(t, Timeout, out.Kind)
}

func TestUnboundHoleSurfacedBeforeEnumeration(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2, 3) // missing "env"
	s := New(oracle.NewVerifier(policyOracle{}))
	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil, defaultBudgets())
	require.Equal(t, UnboundHole, out.Kind)
	require.Error(t, out.Err)
}

func TestPatchApplyFailureIsPerCandidateNotTerminal(t *testing.T) {
	tmpl := patch.Template{Ops: []patch.Operation{
		{Op: "Explode", Args: []patch.Arg{{Name: "x", Value: patch.HoleRef{Name: "x"}}}},
	}}
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("x", 1, 2)
	s := New(oracle.NewVerifier(policyOracle{}))
	out := s.Run(context.Background(), artifact, tmpl, space, nil,
		Budgets{MaxCandidates: 10, MaxIters: 10, Timeout: time.Second})
	// Every candidate fails to apply; enumerator exhausts after both.
	assert.Equal(t, Unsat, out.Kind)
	assert.Equal(t, 2, out.CandidatesTried)
	assert.Equal(t, 2, out.PatchApplyFailures)
}

func TestDeterminism(t *testing.T) {
	run := func() Outcome {
		artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
		space := patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod")
		s := New(oracle.NewVerifier(policyOracle{}))
		return s.Run(context.Background(), artifact, policyTemplate(), space, nil, defaultBudgets())
	}
	a := run()
	b := run()
	assert.Equal(t, a.Kind, b.Kind)
	assert.Equal(t, a.Assignment, b.Assignment)
	assert.Equal(t, a.CandidatesTried, b.CandidatesTried)
	assert.ElementsMatch(t, a.Constraints, b.Constraints)
}

func TestIdempotentReapply(t *testing.T) {
	artifact := newFakeArtifact(map[string]any{"replicas": 2, "env": "prod"})
	space := patch.NewHoleSpace().Add("replicas", 2, 3, 4, 5).Add("env", "staging", "prod")
	s := New(oracle.NewVerifier(policyOracle{}))
	out := s.Run(context.Background(), artifact, policyTemplate(), space, nil, defaultBudgets())
	require.Equal(t, Success, out.Kind)

	p, err := patch.Instantiate(policyTemplate(), out.Assignment)
	require.NoError(t, err)
	replayed, err := artifact.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, out.Artifact.(*fakeArtifact).fields, replayed.(*fakeArtifact).fields)
}
