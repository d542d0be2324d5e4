package deployment

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/artpar/chaindeploy/internal/core/plan"
)

// =============================================================================
// Unit Status
// =============================================================================

var ErrInvalidTransition = errors.New("invalid status transition")

type Status string

const (
	StatusPending   Status = "pending"
	StatusDeploying Status = "deploying"
	StatusDeployed  Status = "deployed"
	StatusFailed    Status = "failed"
)

// validTransitions defines the one-way unit lifecycle. There are no retries.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusDeploying},
	StatusDeploying: {StatusDeployed, StatusFailed},
	StatusDeployed:  {},
	StatusFailed:    {},
}

// CanTransitionTo checks if a transition to the target status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// ValidateTransition returns ErrInvalidTransition if from cannot move to to.
func ValidateTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// =============================================================================
// Unit State
// =============================================================================

// UnitState tracks one unit through a single run.
type UnitState struct {
	Unit       plan.Unit
	Status     Status
	Address    common.Address
	TxHash     common.Hash
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Start moves the unit from pending to deploying.
func (s *UnitState) Start(now time.Time) error {
	if err := ValidateTransition(s.Status, StatusDeploying); err != nil {
		return fmt.Errorf("unit %s: %w", s.Unit.Name, err)
	}
	s.Status = StatusDeploying
	s.StartedAt = now
	return nil
}

// Complete records the receipt and marks the unit deployed.
func (s *UnitState) Complete(r Receipt, now time.Time) error {
	if err := ValidateTransition(s.Status, StatusDeployed); err != nil {
		return fmt.Errorf("unit %s: %w", s.Unit.Name, err)
	}
	s.Status = StatusDeployed
	s.Address = r.Address
	s.TxHash = r.TxHash
	s.FinishedAt = now
	return nil
}

// Fail records cause and marks the unit failed.
func (s *UnitState) Fail(cause error, now time.Time) error {
	if err := ValidateTransition(s.Status, StatusFailed); err != nil {
		return fmt.Errorf("unit %s: %w", s.Unit.Name, err)
	}
	s.Status = StatusFailed
	s.Err = cause
	s.FinishedAt = now
	return nil
}

// States holds the state of every unit in a run, in execution order.
// It implements AddressBook over the units that reached deployed.
type States struct {
	order  []string
	byName map[string]*UnitState
}

// NewStates creates pending states for units, keeping their order.
func NewStates(units []plan.Unit) *States {
	s := &States{
		order:  make([]string, 0, len(units)),
		byName: make(map[string]*UnitState, len(units)),
	}
	for _, u := range units {
		s.order = append(s.order, u.Name)
		s.byName[u.Name] = &UnitState{Unit: u, Status: StatusPending}
	}
	return s
}

// Get returns the state of the named unit.
func (s *States) Get(name string) (*UnitState, bool) {
	st, ok := s.byName[name]
	return st, ok
}

// Address implements AddressBook. Only deployed units have an address.
func (s *States) Address(unit string) (common.Address, bool) {
	st, ok := s.byName[unit]
	if !ok || st.Status != StatusDeployed {
		return common.Address{}, false
	}
	return st.Address, true
}

// All returns every unit state in execution order.
func (s *States) All() []*UnitState {
	out := make([]*UnitState, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Count returns the number of units in each status.
func (s *States) Count() map[Status]int {
	counts := make(map[Status]int)
	for _, st := range s.byName {
		counts[st.Status]++
	}
	return counts
}
