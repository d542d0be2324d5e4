package plan

import (
	"fmt"
	"regexp"
)

var (
	unitNameRegex     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
	initFunctionRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\([^()]*(\([^()]*\)[^()]*)*\))?$`)
)

// =============================================================================
// Plan Validation
// =============================================================================

// Validate checks the structural rules of a plan and returns the first
// violation found. Cycles are not checked here; ordering reports them.
//
// Rules:
//   - at least one unit
//   - unit names are valid identifiers and unique
//   - every unit names an artifact
//   - refs and wraps point at declared units
//   - init is only allowed on units that wrap a logic unit
//   - units that wrap take no explicit args
func Validate(p *Plan) error {
	if p == nil || len(p.Units) == 0 {
		return ErrEmptyPlan
	}

	declared := make(map[string]bool, len(p.Units))
	for _, u := range p.Units {
		field := "units." + u.Name
		if !unitNameRegex.MatchString(u.Name) {
			return NewPlanError(field, fmt.Sprintf("invalid unit name %q", u.Name), ErrInvalidName)
		}
		if declared[u.Name] {
			return NewPlanError(field, "unit is declared more than once", ErrDuplicateUnit)
		}
		declared[u.Name] = true
	}

	for _, u := range p.Units {
		if err := validateUnit(u, declared); err != nil {
			return err
		}
	}

	return nil
}

func validateUnit(u Unit, declared map[string]bool) error {
	field := "units." + u.Name

	if u.Artifact == "" {
		return NewPlanError(field+".artifact", "artifact is required", ErrMissingArtifact)
	}

	if u.Wraps != "" && !declared[u.Wraps] {
		return NewPlanError(field+".wraps", fmt.Sprintf("wraps unknown unit %q", u.Wraps), ErrUnknownReference)
	}

	if err := validateArgs(field+".args", u.Args, declared); err != nil {
		return err
	}

	if u.Init != nil {
		if u.Wraps == "" {
			return NewPlanError(field+".init", "init requires wraps", ErrInvalidInitPayload)
		}
		if !initFunctionRegex.MatchString(u.Init.Function) {
			return NewPlanError(field+".init.function", fmt.Sprintf("malformed function %q", u.Init.Function), ErrInvalidInitPayload)
		}
		if err := validateArgs(field+".init.args", u.Init.Args, declared); err != nil {
			return err
		}
	}

	if u.Wraps != "" && len(u.Args) > 0 {
		return NewPlanError(field+".args", "proxy units are constructed with [logic, init payload] and take no args", ErrInvalidInitPayload)
	}

	return nil
}

func validateArgs(field string, args []Arg, declared map[string]bool) error {
	for i, a := range args {
		argField := fmt.Sprintf("%s[%d]", field, i)
		switch a.Kind {
		case ArgRef:
			if !declared[a.Unit] {
				return NewPlanError(argField, fmt.Sprintf("references unknown unit %q", a.Unit), ErrUnknownReference)
			}
		case ArgList:
			if err := validateArgs(argField, a.Items, declared); err != nil {
				return err
			}
		case ArgLiteral:
			if a.Value == nil {
				return NewPlanError(argField, "literal has no value", ErrInvalidArgument)
			}
		default:
			return NewPlanError(argField, "unknown argument kind", ErrInvalidArgument)
		}
	}
	return nil
}
