package main

import (
	"github.com/simjay/celor/internal/oracle"
	"github.com/simjay/celor/internal/patch"
)

// defaultTemplate is the domain-supplied fallback used when the bank
// misses and the proposer is unavailable or malformed: set replicas and
// the env label over a small hole space. It covers the replica/env policy
// family; violations outside that family leave their evidence to be
// discarded by the constraint extractor and the synthesizer to report the
// honest failure outcome.
func defaultTemplate(_ []oracle.Violation) (patch.Template, *patch.HoleSpace) {
	tmpl := patch.Template{
		Version: "v1",
		Ops: []patch.Operation{
			{Op: "EnsureReplicas", Args: []patch.Arg{
				{Name: "replicas", Value: patch.HoleRef{Name: "replicas"}},
			}},
			{Op: "EnsureLabel", Args: []patch.Arg{
				{Name: "key", Value: patch.Concrete{V: "env"}},
				{Name: "value", Value: patch.HoleRef{Name: "env"}},
			}},
		},
	}
	space := patch.NewHoleSpace().
		Add("replicas", 1, 2, 3, 4, 5).
		Add("env", "staging", "prod")
	return tmpl, space
}
