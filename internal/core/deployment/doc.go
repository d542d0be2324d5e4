// Package deployment provides pure functions for dependency-ordered deployment.
//
// This package contains the functional core logic between a parsed plan and
// the network: ordering units so every reference target is deployed first,
// resolving arguments against the addresses produced so far, and tracking
// each unit's one-way lifecycle. All functions are pure (no I/O, no side
// effects).
//
// # Functions
//
//   - Ordering: Sort units by their references (Order)
//   - Resolution: Turn plan arguments into concrete values (ResolveArgs, UndefinedVariables)
//   - Variables: Substitute ${VAR} placeholders (SubstituteVariables, MissingVariables, MergeVariables)
//   - Status: Unit lifecycle pending → deploying → deployed | failed (UnitState, States)
//   - Results: Deployed units in deployment order (ResultSet)
//
// # Usage
//
// The imperative shell (internal/shell/executor) uses these pure functions
// to drive a run, then hands each resolved unit to the network deployer.
//
//	ordered, err := deployment.Order(p)
//	states := deployment.NewStates(ordered)
//	args, err := deployment.ResolveArgs(unit.Args, states, vars)
package deployment
