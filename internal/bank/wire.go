package bank

import (
	"encoding/json"
	"fmt"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/patch"
	"github.com/simjay/celor/internal/signature"
	"github.com/simjay/celor/internal/wire"
)

type wireConstraint struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	constraintTypeValue = "forbidden_value"
	constraintTypeTuple = "forbidden_tuple"
)

func encodeConstraint(c constraint.Constraint) (wireConstraint, error) {
	switch v := c.(type) {
	case constraint.ForbiddenValue:
		data, err := json.Marshal(struct {
			Hole  string `json:"hole"`
			Value any    `json:"value"`
		}{v.Hole, v.Value})
		return wireConstraint{Type: constraintTypeValue, Data: data}, err
	case constraint.ForbiddenTuple:
		data, err := json.Marshal(struct {
			Holes  []string `json:"holes"`
			Values []any    `json:"values"`
		}{v.Holes, v.Values})
		return wireConstraint{Type: constraintTypeTuple, Data: data}, err
	default:
		return wireConstraint{}, fmt.Errorf("bank: unknown constraint type %T", c)
	}
}

func decodeConstraint(w wireConstraint) (constraint.Constraint, error) {
	switch w.Type {
	case constraintTypeValue:
		var v struct {
			Hole  string `json:"hole"`
			Value any    `json:"value"`
		}
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		return constraint.ForbiddenValue{Hole: v.Hole, Value: v.Value}, nil
	case constraintTypeTuple:
		var v struct {
			Holes  []string `json:"holes"`
			Values []any    `json:"values"`
		}
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		return constraint.NewForbiddenTuple(v.Holes, v.Values), nil
	default:
		return nil, fmt.Errorf("bank: unknown constraint type %q", w.Type)
	}
}

type wireSignature struct {
	FailedOracles []string          `json:"failed_oracles"`
	ErrorCodes    []string          `json:"error_codes"`
	Context       map[string]string `json:"context,omitempty"`
}

func encodeSignature(s signature.Signature) wireSignature {
	return wireSignature{FailedOracles: s.FailedOracles, ErrorCodes: s.ErrorCodes, Context: s.Context}
}

func decodeSignature(w wireSignature) signature.Signature {
	return signature.New(w.FailedOracles, w.ErrorCodes, w.Context)
}

// encodeTemplate, decodeTemplate, encodeHoleSpace and decodeHoleSpace
// delegate to internal/wire, which also backs the template-proposer
// transport format; the bank's on-disk template/hole space encoding is
// the identical shape.
func encodeTemplate(t patch.Template) (wire.Template, error) { return wire.EncodeTemplate(t) }

func decodeTemplate(wt wire.Template) (patch.Template, error) { return wire.DecodeTemplate(wt) }

func encodeHoleSpace(space *patch.HoleSpace) (wire.OrderedObject, error) {
	return wire.EncodeHoleSpace(space)
}

func decodeHoleSpace(o wire.OrderedObject) (*patch.HoleSpace, error) {
	return wire.DecodeHoleSpace(o)
}
