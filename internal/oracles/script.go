package oracles

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/simjay/celor/internal/oracle"
)

// ScriptOracle evaluates a user-supplied JavaScript predicate against a
// JSON snapshot of the artifact, via a fresh goja.Runtime per
// check. It lets operators add ad-hoc policy without recompiling the
// binary. It stays pure and deterministic: the script
// receives its own decoded copy of the manifest as `manifest` and hands
// back violations by calling `report(...)` (its return value is ignored);
// it never touches engine state, and a fresh VM and snapshot are built for
// every call so no state leaks between checks.
type ScriptOracle struct {
	Code string
	Name string
}

var _ oracle.Oracle = (*ScriptOracle)(nil)

// NewScriptOracle builds a ScriptOracle named name, evaluating code. code
// must call `report(violations)` with an array of
// {code, message, forbid_value: [{hole, value}], forbid_tuple: [{holes, values}]}
// objects; any subset of those keys may be omitted.
func NewScriptOracle(name, code string) *ScriptOracle {
	return &ScriptOracle{Code: code, Name: name}
}

func (o *ScriptOracle) ID() string {
	if o.Name != "" {
		return "script:" + o.Name
	}
	return "script"
}

// scriptViolation mirrors the JSON shape a script's report() call
// supplies, decoded via goja's Export()+JSON round trip (the same
// approach the TEE script engine uses for complex return values).
type scriptViolation struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	ForbidValue []struct {
		Hole  string `json:"hole"`
		Value any    `json:"value"`
	} `json:"forbid_value"`
	ForbidTuple []struct {
		Holes  []string `json:"holes"`
		Values []any    `json:"values"`
	} `json:"forbid_tuple"`
}

func (o *ScriptOracle) Check(a oracle.Artifact) ([]oracle.Violation, error) {
	body, err := projectJSON(a)
	if err != nil {
		return nil, err
	}
	var manifest any
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, fmt.Errorf("oracles: script oracle: decoding manifest snapshot: %w", err)
	}

	vm := goja.New()
	var reported []scriptViolation
	reportErr := error(nil)
	_ = vm.Set("report", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		raw, err := json.Marshal(call.Arguments[0].Export())
		if err != nil {
			reportErr = err
			return goja.Undefined()
		}
		var vs []scriptViolation
		if err := json.Unmarshal(raw, &vs); err != nil {
			reportErr = err
			return goja.Undefined()
		}
		reported = append(reported, vs...)
		return goja.Undefined()
	})
	_ = vm.Set("manifest", vm.ToValue(manifest))

	if _, err := vm.RunString(o.Code); err != nil {
		// A script error is the oracle's own internal failure, reported
		// as a violation rather than propagated upward.
		return []oracle.Violation{oracle.InternalFailure(o.ID() + ": " + err.Error())}, nil
	}
	if reportErr != nil {
		return []oracle.Violation{oracle.InternalFailure(o.ID() + ": " + reportErr.Error())}, nil
	}

	violations := make([]oracle.Violation, 0, len(reported))
	for _, v := range reported {
		ev := oracle.Evidence{}
		for _, fv := range v.ForbidValue {
			ev.ForbidValue = append(ev.ForbidValue, oracle.ForbidValueHint{Hole: fv.Hole, Value: fv.Value})
		}
		for _, ft := range v.ForbidTuple {
			ev.ForbidTuple = append(ev.ForbidTuple, oracle.ForbidTupleHint{Holes: ft.Holes, Values: ft.Values})
		}
		code := v.Code
		if code == "" {
			code = o.ID()
		}
		violations = append(violations, oracle.Violation{Code: code, Message: v.Message, Evidence: ev})
	}
	return violations, nil
}
