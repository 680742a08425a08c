package oracle

// Verifier runs a fixed ordered sequence of oracles against an artifact
// and concatenates their violation lists, preserving per-oracle internal
// order and the supplied oracle order. No retries, no suppression.
type Verifier struct {
	oracles []Oracle
}

// NewVerifier builds a verifier over the given oracles, in the order they
// must run on every verification.
func NewVerifier(oracles ...Oracle) *Verifier {
	cp := make([]Oracle, len(oracles))
	copy(cp, oracles)
	return &Verifier{oracles: cp}
}

// Oracles returns the configured oracle order (used to build signatures).
func (v *Verifier) Oracles() []Oracle {
	out := make([]Oracle, len(v.oracles))
	copy(out, v.oracles)
	return out
}

// Report groups one oracle's violations with the oracle's identity, so
// callers building signatures can attribute each violation to the oracle
// that produced it.
type Report struct {
	OracleID   string
	Violations []Violation
}

// Verify runs every oracle in order and concatenates their violations. An
// oracle that itself errors contributes an internal-failure violation
// rather than aborting the run, so one misbehaving oracle never prevents
// evaluation of the rest.
func (v *Verifier) Verify(artifact Artifact) []Violation {
	var all []Violation
	for _, r := range v.VerifyDetailed(artifact) {
		all = append(all, r.Violations...)
	}
	return all
}

// VerifyDetailed runs every oracle in order and returns one Report per
// oracle, preserving per-oracle internal order. Oracles that pass appear
// with an empty violation list, keeping the report aligned with the
// configured oracle order.
func (v *Verifier) VerifyDetailed(artifact Artifact) []Report {
	reports := make([]Report, len(v.oracles))
	for i, o := range v.oracles {
		vs, err := o.Check(artifact)
		if err != nil {
			vs = []Violation{InternalFailure(o.ID() + ": " + err.Error())}
		}
		reports[i] = Report{OracleID: o.ID(), Violations: vs}
	}
	return reports
}
