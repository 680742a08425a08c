// Package oracles implements the concrete oracles named in the spec's
// end-to-end scenarios plus the domain-stack expansion: PolicyOracle,
// ResourceOracle, SecurityOracle, SchemaOracle, and ScriptOracle. Each
// satisfies internal/oracle.Oracle and is otherwise ordinary application
// code; the core engine (internal/synth, internal/enumerate, ...) never
// imports this package.
package oracles

import (
	"fmt"

	"github.com/simjay/celor/internal/artifact"
	"github.com/simjay/celor/internal/oracle"
)

// projectJSON renders a's JSON projection for gjson-based field lookups.
// Every oracle in this package needs the same projection, so it lives
// here once rather than duplicated per oracle.
func projectJSON(a oracle.Artifact) ([]byte, error) {
	m, ok := a.(*artifact.Manifest)
	if !ok {
		return nil, fmt.Errorf("oracles: artifact is not a *artifact.Manifest (got %T)", a)
	}
	return m.JSON()
}

func forbidValue(hole string, value any) oracle.Evidence {
	return oracle.Evidence{ForbidValue: []oracle.ForbidValueHint{{Hole: hole, Value: value}}}
}

func forbidTuple(holes []string, values []any) oracle.Evidence {
	return oracle.Evidence{ForbidTuple: []oracle.ForbidTupleHint{{Holes: holes, Values: values}}}
}
