// Package controller implements the top-level orchestrator for a single
// repair request: signature lookup, template acquisition (bank, then
// proposer, then domain default), synthesizer invocation, and bank
// update on success. The controller never mutates the bank on failure.
package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/simjay/celor/internal/bank"
	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
	"github.com/simjay/celor/internal/proposer"
	"github.com/simjay/celor/internal/signature"
	"github.com/simjay/celor/internal/synth"
	"github.com/simjay/celor/pkg/logger"
	"github.com/simjay/celor/pkg/metrics"
)

// TemplateSource reports where the template a repair used came from.
type TemplateSource string

const (
	SourceNone     TemplateSource = "none"
	SourceBank     TemplateSource = "bank"
	SourceProposer TemplateSource = "proposer"
	SourceDefault  TemplateSource = "default"
)

// DefaultTemplateFunc supplies the domain-default template and hole space
// used when the bank misses and the proposer is unavailable or malformed.
// It receives the violations driving the repair so a caller can pick
// among several domain default templates.
type DefaultTemplateFunc func(violations []oracle.Violation) (patch.Template, *patch.HoleSpace)

// Options configures a Controller.
type Options struct {
	Bank             *bank.Bank
	Proposer         proposer.Proposer
	DefaultTemplate  DefaultTemplateFunc
	Budgets          synth.Budgets
	Log              *logger.Logger
	ProposerDisabled bool
}

// Controller orchestrates repair requests over a fixed verifier.
type Controller struct {
	verifier *oracle.Verifier
	synth    *synth.Synthesizer
	opts     Options
}

// New builds a Controller over the given oracle verifier and options.
func New(verifier *oracle.Verifier, opts Options) *Controller {
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	return &Controller{
		verifier: verifier,
		synth:    synth.New(verifier),
		opts:     opts,
	}
}

// Status is the closed set of outcomes a repair request reports.
type Status string

const (
	StatusNoViolationsInitially Status = "no_violations_initially"
	StatusSuccess               Status = "success"
	StatusUnsat                 Status = "unsat"
	StatusBudgetExhausted       Status = "budget_exhausted"
	StatusTimeout               Status = "timeout"
	StatusNoProgress            Status = "no_progress"
	StatusUnboundHole           Status = "unbound_hole"
)

// Result is what a repair request returns to its caller.
type Result struct {
	Status Status

	// RequestID identifies this repair request in logs.
	RequestID string

	// Artifact is the repaired artifact on success, or the original
	// artifact unchanged on any failure status.
	Artifact oracle.Artifact

	Assignment         patch.Assignment
	ConstraintsLearned []constraint.Constraint
	Iterations         int
	CandidatesTried    int
	TemplateSource     TemplateSource
	Signature          signature.Signature
	Err                error
}

// Repair runs the full controller flow for one artifact against one set
// of context labels (e.g. app name, environment), which become the
// signature's optional context.
func (c *Controller) Repair(ctx context.Context, artifact oracle.Artifact, labels map[string]string) Result {
	return c.repair(ctx, artifact, labels, true)
}

// DryRun behaves like Repair but never mutates the bank, even on
// success, so callers can probe whether a repair exists without
// committing anything.
func (c *Controller) DryRun(ctx context.Context, artifact oracle.Artifact, labels map[string]string) Result {
	return c.repair(ctx, artifact, labels, false)
}

func (c *Controller) repair(ctx context.Context, artifact oracle.Artifact, labels map[string]string, persist bool) Result {
	requestID := uuid.NewString()
	log := c.opts.Log.WithField("request_id", requestID)
	start := time.Now()

	reports := c.verifier.VerifyDetailed(artifact)
	violations := flatten(reports)
	if len(violations) == 0 {
		log.WithField("status", StatusNoViolationsInitially).Debug("repair: artifact already compliant")
		metrics.ObserveRepairAttempt(string(StatusNoViolationsInitially), time.Since(start).Seconds(), 0)
		return Result{Status: StatusNoViolationsInitially, RequestID: requestID, Artifact: artifact}
	}

	sig := buildSignature(reports, labels)
	log = log.WithField("signature", sig.Key())

	tmpl, space, initial, source := c.acquireTemplate(ctx, log, artifact, sig, violations)
	log.WithField("template_source", string(source)).Info("repair: template acquired")

	outcome := c.synth.Run(ctx, artifact, tmpl, space, initial, c.opts.Budgets)

	result := Result{
		RequestID:          requestID,
		Assignment:         outcome.Assignment,
		ConstraintsLearned: outcome.Constraints,
		Iterations:         outcome.Iterations,
		CandidatesTried:    outcome.CandidatesTried,
		TemplateSource:     source,
		Signature:          sig,
		Err:                outcome.Err,
	}

	switch outcome.Kind {
	case synth.Success:
		result.Status = StatusSuccess
		result.Artifact = outcome.Artifact
		if persist && c.opts.Bank != nil {
			c.opts.Bank.Store(sig, tmpl, space, outcome.Constraints, outcome.Assignment, outcome.CandidatesTried, time.Now())
			if err := c.opts.Bank.Flush(); err != nil {
				log.WithField("error", err.Error()).Warn("repair: bank flush failed")
			}
			metrics.SetBankSize(c.opts.Bank.Len())
		}
		metrics.ObserveRepairAttempt(string(StatusSuccess), time.Since(start).Seconds(), outcome.CandidatesTried)
		log.WithFields(logrus.Fields{
			"candidates": outcome.CandidatesTried,
			"iterations": outcome.Iterations,
		}).Info("repair: success")
		return result
	case synth.Unsat:
		result.Status = StatusUnsat
	case synth.BudgetExhausted:
		result.Status = StatusBudgetExhausted
	case synth.Timeout:
		result.Status = StatusTimeout
	case synth.NoProgress:
		result.Status = StatusNoProgress
	case synth.UnboundHole:
		result.Status = StatusUnboundHole
	default:
		result.Status = StatusUnboundHole
	}
	result.Artifact = artifact
	metrics.ObserveRepairAttempt(string(result.Status), time.Since(start).Seconds(), outcome.CandidatesTried)
	log.WithField("status", result.Status).Warn("repair: no repair found")
	return result
}

// acquireTemplate resolves the template for a repair: bank hit, else
// proposer, else domain default.
func (c *Controller) acquireTemplate(
	ctx context.Context,
	log *logrus.Entry,
	artifact oracle.Artifact,
	sig signature.Signature,
	violations []oracle.Violation,
) (patch.Template, *patch.HoleSpace, *constraint.Set, TemplateSource) {
	if c.opts.Bank != nil {
		if entry, ok := c.opts.Bank.Lookup(sig); ok {
			metrics.ObserveBankLookup(true)
			log.Debug("repair: bank hit")
			return entry.Template, entry.HoleSpace, constraint.NewSet(entry.LearnedConstraints...), SourceBank
		}
		metrics.ObserveBankLookup(false)
	}
	log.Debug("repair: bank miss")

	if !c.opts.ProposerDisabled && c.opts.Proposer != nil {
		pc := proposer.ProposalContext{Violations: summarizeViolations(violations)}
		if j, ok := artifact.(jsonProjector); ok {
			if body, err := j.JSON(); err == nil {
				pc.ArtifactJSON = body
			}
		}
		prop, err := c.opts.Proposer.Propose(ctx, pc)
		if err == nil && prop != nil {
			if validateProposal(prop) == nil {
				metrics.ObserveProposerRequest("ok")
				return prop.Template, prop.HoleSpace, constraint.NewSet(), SourceProposer
			}
			metrics.ObserveProposerRequest("malformed")
			log.Warn("repair: proposer returned a malformed template, falling back to default")
		} else if err != nil {
			metrics.ObserveProposerRequest("error")
			log.WithField("error", err.Error()).Warn("repair: proposer unavailable, falling back to default")
		}
	}

	if c.opts.DefaultTemplate != nil {
		tmpl, space := c.opts.DefaultTemplate(violations)
		return tmpl, space, constraint.NewSet(), SourceDefault
	}
	return patch.Template{}, patch.NewHoleSpace(), constraint.NewSet(), SourceNone
}

type jsonProjector interface {
	JSON() ([]byte, error)
}

func validateProposal(p *proposer.Proposal) error {
	for _, h := range p.Template.HoleNames() {
		if !p.HoleSpace.Has(h) {
			return &patch.UnboundHoleError{Hole: h}
		}
	}
	return nil
}

func summarizeViolations(violations []oracle.Violation) []proposer.ViolationSummary {
	out := make([]proposer.ViolationSummary, len(violations))
	for i, v := range violations {
		out[i] = proposer.ViolationSummary{Code: v.Code, Message: v.Message}
	}
	return out
}

func flatten(reports []oracle.Report) []oracle.Violation {
	var all []oracle.Violation
	for _, r := range reports {
		all = append(all, r.Violations...)
	}
	return all
}

// buildSignature derives the bank key from the verification reports: the
// set of oracles that produced at least one violation plus the distinct
// error codes observed, both canonicalised by signature.New.
func buildSignature(reports []oracle.Report, labels map[string]string) signature.Signature {
	var failed []string
	var codes []string
	for _, r := range reports {
		if len(r.Violations) == 0 {
			continue
		}
		failed = append(failed, r.OracleID)
		for _, v := range r.Violations {
			codes = append(codes, v.Code)
		}
	}
	return signature.New(failed, codes, labels)
}
