// Package plan contains the deployment plan model and pure functions for
// parsing and validating plan files.
// This is part of the Functional Core - all functions are pure with no I/O.
package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput    = errors.New("plan is empty")
	ErrInvalidSyntax = errors.New("invalid plan syntax")

	// Plan structure errors
	ErrEmptyPlan         = errors.New("plan must define at least one unit")
	ErrInvalidName       = errors.New("invalid unit name")
	ErrDuplicateUnit     = errors.New("duplicate unit name")
	ErrMissingArtifact   = errors.New("unit must reference an artifact")
	ErrUnknownReference  = errors.New("reference to unknown unit")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUndefinedVariable = errors.New("undefined variable")

	// Orchestration errors
	ErrCyclicDependency    = errors.New("cyclic dependency between units")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrInvalidInitPayload  = errors.New("invalid init payload")
	ErrDeploymentFailed    = errors.New("deployment failed")
)

// PlanError wraps errors with context about where in the plan validation failed.
type PlanError struct {
	Field   string // e.g., "units.AccountProxy.init.args[0]"
	Message string
	Err     error
}

func (e *PlanError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// NewPlanError creates a new PlanError.
func NewPlanError(field, message string, err error) *PlanError {
	return &PlanError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// DeploymentError reports that the network deployer rejected a unit.
// It matches ErrDeploymentFailed with errors.Is and unwraps to the cause.
type DeploymentError struct {
	Unit     string
	Artifact string
	Err      error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("unit %s (%s): %s: %v", e.Unit, e.Artifact, ErrDeploymentFailed, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDeploymentFailed.
func (e *DeploymentError) Is(target error) bool {
	return target == ErrDeploymentFailed
}
