package oracles

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/simjay/celor/internal/oracle"
)

// SecurityOracle forbids hostNetwork, privileged containers, and
// containers that may run as root (no runAsNonRoot and no non-zero
// runAsUser in the container's securityContext; the pod-level
// securityContext is not consulted). Each
// violation's evidence names the hole convention a security-repair
// template is expected to use:
// "sec:pod:hostNetwork", "sec:<container>:privileged",
// "sec:<container>:runAsNonRoot", so a template exercising those holes
// gets pruning hints, and one that doesn't simply has them discarded.
type SecurityOracle struct{}

var _ oracle.Oracle = (*SecurityOracle)(nil)

func NewSecurityOracle() *SecurityOracle { return &SecurityOracle{} }

func (o *SecurityOracle) ID() string { return "security" }

func (o *SecurityOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	body, err := projectJSON(a)
	if err != nil {
		return nil, err
	}

	var violations []oracle.Violation

	if gjson.GetBytes(body, "spec.hostNetwork").Bool() {
		violations = append(violations, oracle.Violation{
			Code:     "security_host_network",
			Message:  "spec.hostNetwork must not be true",
			Evidence: forbidValue("sec:pod:hostNetwork", true),
		})
	}

	containers := containerPath(body)
	if containers == "" {
		return violations, nil
	}

	gjson.GetBytes(body, containers).ForEach(func(_, c gjson.Result) bool {
		name := c.Get("name").String()

		if c.Get("securityContext.privileged").Bool() {
			violations = append(violations, oracle.Violation{
				Code:     "security_privileged",
				Message:  fmt.Sprintf("container %q must not run privileged", name),
				Evidence: forbidValue(fmt.Sprintf("sec:%s:privileged", name), true),
			})
		}

		nonRoot := c.Get("securityContext.runAsNonRoot")
		runAsUser := c.Get("securityContext.runAsUser")
		runsAsRoot := (!nonRoot.Exists() || !nonRoot.Bool()) && (!runAsUser.Exists() || runAsUser.Int() == 0)
		if runsAsRoot {
			violations = append(violations, oracle.Violation{
				Code:     "security_runs_as_root",
				Message:  fmt.Sprintf("container %q must set runAsNonRoot or a non-zero runAsUser", name),
				Evidence: forbidValue(fmt.Sprintf("sec:%s:runAsNonRoot", name), false),
			})
		}
		return true
	})
	return violations, nil
}
