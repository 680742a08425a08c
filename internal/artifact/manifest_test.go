package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simjay/celor/internal/patch"
)

const sampleManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: checkout
  labels:
    env: staging
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: app
          image: example/checkout:1.0
`

func TestApplyPreservesUnrelatedStructureAndOrder(t *testing.T) {
	m, err := Parse("sample.yaml", []byte(sampleManifest))
	require.NoError(t, err)

	p := patch.Patch{Ops: []patch.Operation{
		{Op: "EnsureReplicas", Args: []patch.Arg{{Name: "replicas", Value: patch.Concrete{V: 3}}}},
		{Op: "EnsureLabel", Args: []patch.Arg{
			{Name: "key", Value: patch.Concrete{V: "env"}},
			{Name: "value", Value: patch.Concrete{V: "prod"}},
		}},
	}}

	applied, err := m.Apply(p)
	require.NoError(t, err)
	out := applied.(*Manifest)

	data, err := out.Bytes()
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "replicas: 3")
	assert.Contains(t, text, "env: prod")
	assert.Contains(t, text, "name: checkout")
	assert.Contains(t, text, "image: example/checkout:1.0")
	assert.Less(t, strings.Index(text, "name: checkout"), strings.Index(text, "replicas: 3"))

	// Original untouched.
	origData, err := m.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(origData), "replicas: 2")
	assert.Contains(t, string(origData), "env: staging")
}

func TestApplyAlwaysAgainstSameOriginal(t *testing.T) {
	m, err := Parse("sample.yaml", []byte(sampleManifest))
	require.NoError(t, err)

	p1 := patch.Patch{Ops: []patch.Operation{
		{Op: "EnsureReplicas", Args: []patch.Arg{{Name: "replicas", Value: patch.Concrete{V: 5}}}},
	}}
	p2 := patch.Patch{Ops: []patch.Operation{
		{Op: "EnsureReplicas", Args: []patch.Arg{{Name: "replicas", Value: patch.Concrete{V: 4}}}},
	}}

	a1, err := m.Apply(p1)
	require.NoError(t, err)
	a2, err := m.Apply(p2)
	require.NoError(t, err)

	d1, _ := a1.(*Manifest).Bytes()
	d2, _ := a2.(*Manifest).Bytes()
	assert.Contains(t, string(d1), "replicas: 5")
	assert.Contains(t, string(d2), "replicas: 4")
}

func TestResourceAndSecurityOpcodes(t *testing.T) {
	m, err := Parse("sample.yaml", []byte(sampleManifest))
	require.NoError(t, err)

	p := patch.Patch{Ops: []patch.Operation{
		{Op: "EnsureResourceRequest", Args: []patch.Arg{
			{Name: "container", Value: patch.Concrete{V: "app"}},
			{Name: "resource", Value: patch.Concrete{V: "cpu"}},
			{Name: "value", Value: patch.Concrete{V: "100m"}},
		}},
		{Op: "EnsureSecurityField", Args: []patch.Arg{
			{Name: "container", Value: patch.Concrete{V: "app"}},
			{Name: "field", Value: patch.Concrete{V: "runAsNonRoot"}},
			{Name: "value", Value: patch.Concrete{V: true}},
		}},
	}}

	applied, err := m.Apply(p)
	require.NoError(t, err)
	data, err := applied.(*Manifest).Bytes()
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "cpu: 100m")
	assert.Contains(t, text, "runAsNonRoot: true")
}

func TestApplyUnknownOpcodeFails(t *testing.T) {
	m, err := Parse("sample.yaml", []byte(sampleManifest))
	require.NoError(t, err)

	_, err = m.Apply(patch.Patch{Ops: []patch.Operation{{Op: "DoesNotExist"}}})
	assert.Error(t, err)
}
