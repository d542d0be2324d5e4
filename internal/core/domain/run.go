// Package domain holds the persisted records of deployment runs.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPlanRequired      = errors.New("plan name is required")
)

// =============================================================================
// Run Status
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

var validRunTransitions = map[RunStatus][]RunStatus{
	RunRunning:   {RunSucceeded, RunFailed},
	RunSucceeded: {},
	RunFailed:    {},
}

// CanTransitionTo checks if a transition to the target status is valid.
func (s RunStatus) CanTransitionTo(target RunStatus) bool {
	for _, allowed := range validRunTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// =============================================================================
// Run
// =============================================================================

// Run is one invocation of a plan against a network.
type Run struct {
	ID         string       `json:"id"`
	Plan       string       `json:"plan"`
	ChainID    uint64       `json:"chain_id"`
	Deployer   string       `json:"deployer"`
	Status     RunStatus    `json:"status"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Units      []UnitRecord `json:"units,omitempty"`
}

// UnitRecord is the outcome of one unit within a run.
type UnitRecord struct {
	RunID      string     `json:"-"`
	Position   int        `json:"position"`
	Unit       string     `json:"unit"`
	Artifact   string     `json:"artifact"`
	Status     string     `json:"status"`
	Address    string     `json:"address,omitempty"`
	TxHash     string     `json:"tx_hash,omitempty"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRun creates a running Run with a fresh ID.
func NewRun(planName string, chainID uint64, deployer string) (*Run, error) {
	if planName == "" {
		return nil, ErrPlanRequired
	}
	return &Run{
		ID:        uuid.New().String(),
		Plan:      planName,
		ChainID:   chainID,
		Deployer:  deployer,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Finish moves the run to succeeded, or to failed when cause is non-nil.
func (r *Run) Finish(cause error) error {
	target := RunSucceeded
	if cause != nil {
		target = RunFailed
	}
	if !r.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, target)
	}

	now := time.Now().UTC()
	r.Status = target
	r.FinishedAt = &now
	if cause != nil {
		r.Error = cause.Error()
	}
	return nil
}

// Deployed returns the records of units that reached deployed.
func (r *Run) Deployed() []UnitRecord {
	var out []UnitRecord
	for _, u := range r.Units {
		if u.Address != "" {
			out = append(out, u)
		}
	}
	return out
}
