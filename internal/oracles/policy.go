package oracles

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/simjay/celor/internal/oracle"
)

// PolicyRule expresses "when the field at EnvPath equals RequireEnv, the
// field at ReplicasPath must be one of AllowedReplicas".
// EnvHole/ReplicasHole name the template holes this rule's violations
// hint at; a template without matching holes simply has this evidence
// discarded by the constraint extractor.
type PolicyRule struct {
	Name            string
	EnvPath         string
	ReplicasPath    string
	RequireEnv      string
	AllowedReplicas []int
	EnvHole         string
	ReplicasHole    string
}

// PolicyOracle enforces a fixed set of PolicyRules against a manifest's
// JSON projection.
type PolicyOracle struct {
	Rules []PolicyRule
}

var _ oracle.Oracle = (*PolicyOracle)(nil)

// NewDefaultPolicyOracle returns the stock production-replica rule:
// env=prod requires replicas in {3,4,5}.
func NewDefaultPolicyOracle() *PolicyOracle {
	return &PolicyOracle{Rules: []PolicyRule{
		{
			Name:            "prod_replica_floor",
			EnvPath:         "metadata.labels.env",
			ReplicasPath:    "spec.replicas",
			RequireEnv:      "prod",
			AllowedReplicas: []int{3, 4, 5},
			EnvHole:         "env",
			ReplicasHole:    "replicas",
		},
	}}
}

func (o *PolicyOracle) ID() string { return "policy" }

func (o *PolicyOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	body, err := projectJSON(a)
	if err != nil {
		return nil, err
	}

	var violations []oracle.Violation
	for _, rule := range o.Rules {
		env := gjson.GetBytes(body, gjsonPath(rule.EnvPath))
		if !env.Exists() || env.String() != rule.RequireEnv {
			continue
		}
		replicas := gjson.GetBytes(body, gjsonPath(rule.ReplicasPath))
		if !replicas.Exists() {
			continue
		}
		if intIn(int(replicas.Int()), rule.AllowedReplicas) {
			continue
		}
		violations = append(violations, oracle.Violation{
			Code:    "policy_" + rule.Name,
			Message: "replicas " + replicas.String() + " not permitted when " + rule.EnvPath + "=" + rule.RequireEnv,
			Evidence: forbidTuple(
				[]string{rule.EnvHole, rule.ReplicasHole},
				[]any{rule.RequireEnv, int(replicas.Int())},
			),
		})
	}
	return violations, nil
}

func intIn(n int, set []int) bool {
	for _, v := range set {
		if v == n {
			return true
		}
	}
	return false
}

// gjsonPath translates a dotted field path into gjson's query syntax.
// The engine's paths are plain dotted mapping traversals, which is
// already gjson's default syntax, so the only translation is dropping a
// leading dot; keys containing literal dots are not escaped.
func gjsonPath(path string) string {
	return strings.TrimPrefix(path, ".")
}
