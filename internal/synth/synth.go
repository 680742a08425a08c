// Package synth implements one full CEGIS attempt: verify, extract,
// enumerate, instantiate, apply, re-verify, learn; repeated until
// success, exhaustion, or a budget is spent.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/enumerate"
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
)

// Budgets bounds one synthesis attempt. All three fields must be
// positive; Synthesizer.Run treats a non-positive budget as programmer
// error and returns an UnboundHole-class outcome rather than looping
// forever.
type Budgets struct {
	MaxCandidates int
	MaxIters      int
	Timeout       time.Duration
}

func (b Budgets) valid() bool {
	return b.MaxCandidates > 0 && b.MaxIters > 0 && b.Timeout > 0
}

// Kind is the closed set of terminal outcomes one synthesis attempt can
// report.
type Kind int

const (
	// NoViolationsInitially means the input artifact already satisfied
	// every oracle; no synthesis was attempted.
	NoViolationsInitially Kind = iota
	// Success means a patched artifact satisfying every oracle was found.
	Success
	// Unsat means the enumerator exhausted its domain without a hit.
	Unsat
	// BudgetExhausted means MaxCandidates was reached.
	BudgetExhausted
	// Timeout means the wall-clock deadline was reached.
	Timeout
	// NoProgress means MaxIters consecutive learn cycles added no new
	// constraint.
	NoProgress
	// UnboundHole means the template referenced a hole absent from the
	// hole space, or the hole space/budgets were otherwise malformed;
	// surfaced before enumeration begins.
	UnboundHole
)

func (k Kind) String() string {
	switch k {
	case NoViolationsInitially:
		return "no_violations_initially"
	case Success:
		return "success"
	case Unsat:
		return "unsat"
	case BudgetExhausted:
		return "budget_exhausted"
	case Timeout:
		return "timeout"
	case NoProgress:
		return "no_progress"
	case UnboundHole:
		return "unbound_hole"
	default:
		return "unknown"
	}
}

// Outcome is the full result of one synthesis attempt.
type Outcome struct {
	Kind Kind

	// Artifact and Assignment are populated on Success (and Artifact is
	// the original on NoViolationsInitially, with Assignment empty).
	Artifact   oracle.Artifact
	Assignment patch.Assignment

	// Constraints learned so far, useful for bank storage on success and
	// for debugging on failure.
	Constraints []constraint.Constraint

	Iterations         int
	CandidatesTried    int
	PatchApplyFailures int

	// Err carries diagnostic detail for UnboundHole, and the context's
	// error when cancellation ends the attempt as Timeout.
	Err error
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithClock overrides the wall-clock source; intended for tests that need
// to force a deterministic Timeout outcome.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// Synthesizer drives one CEGIS attempt against a fixed oracle verifier.
type Synthesizer struct {
	verifier *oracle.Verifier
	now      func() time.Time
}

// New builds a Synthesizer over the given verifier.
func New(verifier *oracle.Verifier, opts ...Option) *Synthesizer {
	s := &Synthesizer{verifier: verifier, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one synthesis attempt. It is fully deterministic in its
// inputs except for Timeout, which depends on wall-clock progress.
//
// artifact0 is never mutated; every candidate patch is applied against
// it fresh, because patches are not in general idempotent across
// different assignments and re-applying over a previously patched
// artifact would confuse oracle evidence.
func (s *Synthesizer) Run(
	ctx context.Context,
	artifact0 oracle.Artifact,
	tmpl patch.Template,
	space *patch.HoleSpace,
	initial *constraint.Set,
	budgets Budgets,
) Outcome {
	if !budgets.valid() {
		return Outcome{Kind: UnboundHole, Err: fmt.Errorf("synth: budgets must be positive: %+v", budgets)}
	}

	holeNames := make(map[string]bool)
	for _, n := range space.Names() {
		holeNames[n] = true
	}
	for _, h := range tmpl.HoleNames() {
		if !holeNames[h] {
			return Outcome{Kind: UnboundHole, Err: &patch.UnboundHoleError{Hole: h}}
		}
	}

	violations0 := s.verifier.Verify(artifact0)
	if len(violations0) == 0 {
		return Outcome{Kind: NoViolationsInitially, Artifact: artifact0, Assignment: patch.Assignment{}}
	}

	cs := constraint.NewSet()
	if initial != nil {
		cs.AddAll(initial.List())
	}
	cs.AddAll(constraint.Extract(violations0, holeNames))

	if len(tmpl.HoleNames()) == 0 {
		return s.runNoHoles(artifact0, tmpl, cs, holeNames, budgets)
	}

	enum, err := enumerate.New(space, cs)
	if err != nil {
		return Outcome{Kind: UnboundHole, Err: err}
	}

	start := s.now()
	candidatesTried := 0
	iterations := 0
	noProgressStreak := 0
	patchApplyFailures := 0

	for {
		if candidatesTried >= budgets.MaxCandidates {
			return Outcome{
				Kind: BudgetExhausted, Constraints: cs.List(),
				Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
			}
		}
		if s.now().Sub(start) >= budgets.Timeout {
			return Outcome{
				Kind: Timeout, Constraints: cs.List(),
				Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
			}
		}
		if err := ctx.Err(); err != nil {
			return Outcome{
				Kind: Timeout, Err: err, Constraints: cs.List(),
				Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
			}
		}

		assignment, ok := enum.Next()
		if !ok {
			return Outcome{
				Kind: Unsat, Constraints: cs.List(),
				Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
			}
		}

		p, err := patch.Instantiate(tmpl, assignment)
		if err != nil {
			// Hole coverage was checked before enumeration; this would
			// only occur if the template and hole space were mutated
			// concurrently.
			candidatesTried++
			continue
		}

		candidatesTried++
		applied, err := artifact0.Apply(p)
		if err != nil {
			patchApplyFailures++
			continue
		}

		violations := s.verifier.Verify(applied)
		if len(violations) == 0 {
			return Outcome{
				Kind: Success, Artifact: applied, Assignment: assignment, Constraints: cs.List(),
				Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
			}
		}

		iterations++
		learned := constraint.Extract(violations, holeNames)
		added := cs.AddAll(learned)
		for _, c := range added {
			enum.AddConstraint(c)
		}
		if len(added) == 0 {
			noProgressStreak++
			if noProgressStreak >= budgets.MaxIters {
				return Outcome{
					Kind: NoProgress, Constraints: cs.List(),
					Iterations: iterations, CandidatesTried: candidatesTried, PatchApplyFailures: patchApplyFailures,
				}
			}
		} else {
			noProgressStreak = 0
		}
	}
}

// runNoHoles handles templates that reference no holes at all: there is
// exactly one candidate (the template applied as-is), so there is
// nothing to enumerate.
func (s *Synthesizer) runNoHoles(
	artifact0 oracle.Artifact,
	tmpl patch.Template,
	cs *constraint.Set,
	holeNames map[string]bool,
	budgets Budgets,
) Outcome {
	assignment := patch.Assignment{}
	p, err := patch.Instantiate(tmpl, assignment)
	if err != nil {
		return Outcome{Kind: UnboundHole, Err: err}
	}
	applied, err := artifact0.Apply(p)
	if err != nil {
		return Outcome{Kind: Unsat, Constraints: cs.List(), CandidatesTried: 1, PatchApplyFailures: 1}
	}
	violations := s.verifier.Verify(applied)
	if len(violations) == 0 {
		return Outcome{Kind: Success, Artifact: applied, Assignment: assignment, Constraints: cs.List(), CandidatesTried: 1}
	}
	cs.AddAll(constraint.Extract(violations, holeNames))
	return Outcome{Kind: Unsat, Constraints: cs.List(), CandidatesTried: 1, Iterations: 1}
}
