package patch

import "fmt"

// UnboundHoleError reports a template hole reference with no value in the
// supplied assignment.
type UnboundHoleError struct {
	Hole string
}

func (e *UnboundHoleError) Error() string {
	return fmt.Sprintf("unbound hole %q", e.Hole)
}

// Instantiate replaces every hole reference in the template with its value
// from the assignment, producing a concrete Patch. Traversal is
// deterministic and argument order is preserved exactly as declared.
func Instantiate(t Template, assignment Assignment) (Patch, error) {
	ops := make([]Operation, len(t.Ops))
	for i, op := range t.Ops {
		args := make([]Arg, len(op.Args))
		for j, a := range op.Args {
			switch v := a.Value.(type) {
			case HoleRef:
				val, ok := assignment[v.Name]
				if !ok {
					return Patch{}, &UnboundHoleError{Hole: v.Name}
				}
				args[j] = Arg{Name: a.Name, Value: Concrete{V: val}}
			case Concrete:
				args[j] = Arg{Name: a.Name, Value: v}
			default:
				return Patch{}, &UnboundHoleError{Hole: a.Name}
			}
		}
		ops[i] = Operation{Op: op.Op, Args: args}
	}
	return Patch{Ops: ops}, nil
}
