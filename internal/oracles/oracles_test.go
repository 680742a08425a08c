package oracles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simjay/celor/internal/artifact"
)

const prodManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: checkout
  labels:
    env: prod
spec:
  replicas: 2
  hostNetwork: true
  template:
    spec:
      containers:
        - name: app
          image: example/checkout:1.0
          securityContext:
            privileged: true
`

const compliantManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: checkout
  labels:
    env: prod
spec:
  replicas: 3
  template:
    spec:
      containers:
        - name: app
          image: example/checkout:1.0
          resources:
            requests:
              cpu: 100m
              memory: 128Mi
            limits:
              cpu: 500m
              memory: 256Mi
          securityContext:
            runAsNonRoot: true
`

func TestPolicyOracleFlagsBadReplicaCount(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(prodManifest))
	require.NoError(t, err)

	o := NewDefaultPolicyOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "policy_prod_replica_floor", violations[0].Code)
	require.Len(t, violations[0].Evidence.ForbidTuple, 1)
	assert.Equal(t, []string{"env", "replicas"}, violations[0].Evidence.ForbidTuple[0].Holes)
	assert.Equal(t, []any{"prod", 2}, violations[0].Evidence.ForbidTuple[0].Values)
}

func TestPolicyOracleCompliant(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(compliantManifest))
	require.NoError(t, err)

	o := NewDefaultPolicyOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestResourceOracleFlagsMissingDeclarations(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(prodManifest))
	require.NoError(t, err)

	o := NewDefaultResourceOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	assert.Len(t, violations, 4) // cpu+memory requests, cpu+memory limits
}

func TestResourceOracleCompliant(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(compliantManifest))
	require.NoError(t, err)

	o := NewDefaultResourceOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestSecurityOracleFlagsHostNetworkAndPrivileged(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(prodManifest))
	require.NoError(t, err)

	o := NewSecurityOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)

	var codes []string
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, "security_host_network")
	assert.Contains(t, codes, "security_privileged")
	assert.Contains(t, codes, "security_runs_as_root")
}

func TestSecurityOracleCompliant(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(compliantManifest))
	require.NoError(t, err)

	o := NewSecurityOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestSchemaOracleRequiresCoreFields(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte("metadata:\n  name: x\n"))
	require.NoError(t, err)

	o := NewSchemaOracle()
	violations, err := o.Check(m)
	require.NoError(t, err)
	require.Len(t, violations, 2)
}

func TestScriptOracleReportsViolations(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(prodManifest))
	require.NoError(t, err)

	script := `
		if (manifest.spec.replicas < 3) {
			report([{code: "custom_low_replicas", message: "too few replicas", forbid_value: [{hole: "replicas", value: manifest.spec.replicas}]}]);
		}
	`
	o := NewScriptOracle("low-replicas", script)
	violations, err := o.Check(m)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "custom_low_replicas", violations[0].Code)
	require.Len(t, violations[0].Evidence.ForbidValue, 1)
	assert.Equal(t, "replicas", violations[0].Evidence.ForbidValue[0].Hole)
}

func TestScriptOracleInternalErrorIsAViolationNotAnError(t *testing.T) {
	m, err := artifact.Parse("m.yaml", []byte(prodManifest))
	require.NoError(t, err)

	o := NewScriptOracle("broken", "this is not valid javascript (((")
	violations, err := o.Check(m)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "oracle_internal_error", violations[0].Code)
}
