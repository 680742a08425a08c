// Package wire implements the JSON encoding shared by the two places the
// engine puts a template and hole space on the wire: the repair bank's
// on-disk format and the template proposer's transport format. Both use
// the same {"$hole": "name"} sentinel for hole references and the same
// order-preserving object encoding for argument maps and hole-space
// domains.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/simjay/celor/internal/patch"
)

// OrderedPair is one key/raw-value entry of an OrderedObject.
type OrderedPair struct {
	Key string
	Raw json.RawMessage
}

// OrderedObject is a JSON object that preserves insertion order across a
// marshal/unmarshal round trip, needed because the engine treats
// argument and hole-space ordering as meaningful, unlike Go's map type.
type OrderedObject []OrderedPair

func (o OrderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(p.Raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *OrderedObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("wire: expected JSON object, got %v", tok)
	}
	var out OrderedObject
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("wire: expected string object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, OrderedPair{Key: key, Raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// holeSentinel is the transport representation of a hole reference:
// {"$hole": "name"}.
type holeSentinel struct {
	Hole string `json:"$hole"`
}

func argValueToRaw(v patch.ArgValue) (json.RawMessage, error) {
	switch a := v.(type) {
	case patch.HoleRef:
		return json.Marshal(holeSentinel{Hole: a.Name})
	case patch.Concrete:
		return json.Marshal(a.V)
	default:
		return nil, fmt.Errorf("wire: unknown arg value type %T", v)
	}
}

func rawToArgValue(raw json.RawMessage) (patch.ArgValue, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if holeRaw, ok := probe["$hole"]; ok && len(probe) == 1 {
			var name string
			if err := json.Unmarshal(holeRaw, &name); err != nil {
				return nil, err
			}
			return patch.HoleRef{Name: name}, nil
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return patch.Concrete{V: v}, nil
}

// Op is the wire shape of one patch.Operation.
type Op struct {
	Op   string        `json:"op"`
	Args OrderedObject `json:"args"`
}

// Template is the wire shape of a patch.Template.
type Template struct {
	Ops []Op `json:"ops"`
}

// EncodeTemplate converts an in-memory template to its wire shape.
func EncodeTemplate(t patch.Template) (Template, error) {
	wt := Template{Ops: make([]Op, len(t.Ops))}
	for i, op := range t.Ops {
		args := make(OrderedObject, len(op.Args))
		for j, a := range op.Args {
			raw, err := argValueToRaw(a.Value)
			if err != nil {
				return Template{}, err
			}
			args[j] = OrderedPair{Key: a.Name, Raw: raw}
		}
		wt.Ops[i] = Op{Op: op.Op, Args: args}
	}
	return wt, nil
}

// DecodeTemplate converts a wire template to the in-memory shape.
func DecodeTemplate(wt Template) (patch.Template, error) {
	ops := make([]patch.Operation, len(wt.Ops))
	for i, wop := range wt.Ops {
		args := make([]patch.Arg, len(wop.Args))
		for j, pair := range wop.Args {
			v, err := rawToArgValue(pair.Raw)
			if err != nil {
				return patch.Template{}, err
			}
			args[j] = patch.Arg{Name: pair.Key, Value: v}
		}
		ops[i] = patch.Operation{Op: wop.Op, Args: args}
	}
	return patch.Template{Ops: ops}, nil
}

// EncodeHoleSpace converts a hole space to its wire shape: an ordered
// object mapping hole name to its ordered domain values.
func EncodeHoleSpace(space *patch.HoleSpace) (OrderedObject, error) {
	names := space.Names()
	out := make(OrderedObject, len(names))
	for i, name := range names {
		values, _ := space.Domain(name)
		raw, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		out[i] = OrderedPair{Key: name, Raw: raw}
	}
	return out, nil
}

// DecodeHoleSpace converts a wire hole space to the in-memory shape.
func DecodeHoleSpace(o OrderedObject) (*patch.HoleSpace, error) {
	space := patch.NewHoleSpace()
	for _, pair := range o {
		var values []any
		if err := json.Unmarshal(pair.Raw, &values); err != nil {
			return nil, err
		}
		space.Add(pair.Key, values...)
	}
	return space, nil
}
