package oracles

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/simjay/celor/internal/oracle"
)

// SchemaOracle requires the manifest to carry the minimal fields every
// Kubernetes object needs: apiVersion, kind, and metadata.name.
type SchemaOracle struct{}

var _ oracle.Oracle = (*SchemaOracle)(nil)

func NewSchemaOracle() *SchemaOracle { return &SchemaOracle{} }

func (o *SchemaOracle) ID() string { return "schema" }

func (o *SchemaOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	body, err := projectJSON(a)
	if err != nil {
		return nil, err
	}

	var violations []oracle.Violation
	for _, req := range []struct{ path, field string }{
		{"apiVersion", "apiVersion"},
		{"kind", "kind"},
		{"metadata.name", "metadata.name"},
	} {
		v := gjson.GetBytes(body, req.path)
		if !v.Exists() || v.String() == "" {
			violations = append(violations, oracle.Violation{
				Code:    "schema_missing_" + req.field,
				Message: fmt.Sprintf("required field %q is missing", req.field),
				Evidence: forbidValue(
					fmt.Sprintf("field:%s", req.field), "",
				),
			})
		}
	}
	return violations, nil
}
