package oracles

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/simjay/celor/internal/oracle"
)

// ResourceOracle requires every container to declare CPU/memory requests
// and limits, via the Deployment pod-template shape
// (spec.template.spec.containers) or a bare Pod's spec.containers.
type ResourceOracle struct {
	RequireRequests []string
	RequireLimits   []string
}

var _ oracle.Oracle = (*ResourceOracle)(nil)

// NewDefaultResourceOracle requires cpu and memory requests and limits.
func NewDefaultResourceOracle() *ResourceOracle {
	return &ResourceOracle{
		RequireRequests: []string{"cpu", "memory"},
		RequireLimits:   []string{"cpu", "memory"},
	}
}

func (o *ResourceOracle) ID() string { return "resource" }

func (o *ResourceOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	body, err := projectJSON(a)
	if err != nil {
		return nil, err
	}

	containers := containerPath(body)
	if containers == "" {
		return nil, nil
	}

	var violations []oracle.Violation
	result := gjson.GetBytes(body, containers)
	result.ForEach(func(_, c gjson.Result) bool {
		name := c.Get("name").String()
		for _, r := range o.RequireRequests {
			if !c.Get("resources.requests." + r).Exists() {
				violations = append(violations, missingResourceViolation(name, "request", r))
			}
		}
		for _, l := range o.RequireLimits {
			if !c.Get("resources.limits." + l).Exists() {
				violations = append(violations, missingResourceViolation(name, "limit", l))
			}
		}
		return true
	})
	return violations, nil
}

// missingResourceViolation reports an absent resource declaration. There
// is no wrong value to forbid here (the field is simply unset), so no
// evidence is attached; a template that can set this field via a hole
// still gets the violation and may try a value, but the constraint
// extractor has nothing to learn from absence alone; it never invents
// constraints beyond what evidence explicitly asserts.
func missingResourceViolation(container, kind, resource string) oracle.Violation {
	return oracle.Violation{
		Code:    "resource_missing_" + kind,
		Message: fmt.Sprintf("container %q is missing a %s for %s", container, kind, resource),
	}
}

// containerPath returns the gjson path to the container list, preferring
// the Deployment pod-template shape.
func containerPath(body []byte) string {
	if gjson.GetBytes(body, "spec.template.spec.containers").Exists() {
		return "spec.template.spec.containers"
	}
	if gjson.GetBytes(body, "spec.containers").Exists() {
		return "spec.containers"
	}
	return ""
}
