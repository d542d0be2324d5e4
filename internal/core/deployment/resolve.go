package deployment

import (
	"fmt"
	"slices"

	"github.com/artpar/chaindeploy/internal/core/plan"
)

// =============================================================================
// Argument Resolution Functions
// =============================================================================

// ResolveArgs turns plan arguments into concrete values just before a unit
// is deployed.
//
//   - ref(V) becomes V's address from book, or fails with ErrUnresolvedReference
//   - string literals have ${VAR} placeholders substituted from vars, and fail
//     with ErrUndefinedVariable if a placeholder is left without a value
//   - other literals pass through unchanged
//   - lists are resolved element by element into []any
func ResolveArgs(args []plan.Arg, book AddressBook, vars map[string]string) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := resolveArg(a, book, vars)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func resolveArg(a plan.Arg, book AddressBook, vars map[string]string) (any, error) {
	switch a.Kind {
	case plan.ArgRef:
		addr, ok := book.Address(a.Unit)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not deployed", plan.ErrUnresolvedReference, a.Unit)
		}
		return addr, nil
	case plan.ArgList:
		return ResolveArgs(a.Items, book, vars)
	default:
		s, ok := a.Value.(string)
		if !ok {
			return a.Value, nil
		}
		if missing := MissingVariables(s, vars); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", plan.ErrUndefinedVariable, missing[0])
		}
		return SubstituteVariables(s, vars), nil
	}
}

// UndefinedVariables lists every placeholder in the plan's arguments that
// vars cannot satisfy, sorted by name.
func UndefinedVariables(p *plan.Plan, vars map[string]string) []string {
	var missing []string
	var walk func(args []plan.Arg)
	walk = func(args []plan.Arg) {
		for _, a := range args {
			switch a.Kind {
			case plan.ArgList:
				walk(a.Items)
			case plan.ArgLiteral:
				if s, ok := a.Value.(string); ok {
					for _, name := range MissingVariables(s, vars) {
						if !slices.Contains(missing, name) {
							missing = append(missing, name)
						}
					}
				}
			}
		}
	}

	for _, u := range p.Units {
		walk(u.Args)
		if u.Init != nil {
			walk(u.Init.Args)
		}
	}
	slices.Sort(missing)
	return missing
}
