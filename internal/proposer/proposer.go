// Package proposer implements the external template-proposer client: a
// one-shot HTTP call made only when the repair bank misses, decoding the
// template transport format. The controller
// never imports the concrete Proposer the wire client builds; it
// depends on the Proposer interface only, so a default/noop proposer can
// stand in for offline or test use.
package proposer

import (
	"context"

	"github.com/simjay/celor/internal/patch"
)

// Proposal is a proposer's response: a template plus the hole space it
// should be instantiated against.
type Proposal struct {
	Template  patch.Template
	HoleSpace *patch.HoleSpace
}

// Proposer asks an external collaborator for a repair template on a bank
// miss. Implementations must be safe for the controller to call at most
// once per repair request.
type Proposer interface {
	Propose(ctx context.Context, sig ProposalContext) (*Proposal, error)
}

// ProposalContext carries what the proposer needs to suggest a template:
// the artifact's JSON projection and the violations that must be fixed.
type ProposalContext struct {
	ArtifactJSON []byte
	Violations   []ViolationSummary
}

// ViolationSummary is a compact, JSON-friendly projection of
// oracle.Violation for the proposal request payload (internal/proposer
// deliberately does not import internal/oracle's richer Evidence type;
// the wire contract is simpler than the in-process one).
type ViolationSummary struct {
	OracleID string `json:"oracle_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Default is a proposer that never succeeds: Propose always returns
// ErrUnavailable, so the controller's bank-miss fallback path is exercised
// deterministically when no remote endpoint is configured.
type Default struct{}

// ErrUnavailable is returned by Default.Propose and by the HTTP client
// when the configured endpoint is empty.
var ErrUnavailable = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "proposer: unavailable" }

func (Default) Propose(ctx context.Context, _ ProposalContext) (*Proposal, error) {
	return nil, ErrUnavailable
}
