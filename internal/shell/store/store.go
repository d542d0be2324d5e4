package store

import (
	"context"

	"github.com/artpar/chaindeploy/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the deployment run ledger.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	UpdateRun(ctx context.Context, run *domain.Run) error
	ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error)
	CountRuns(ctx context.Context, plan string) (int, error)

	// Unit result operations
	RecordUnit(ctx context.Context, rec *domain.UnitRecord) error
	ListUnitRecords(ctx context.Context, runID string) ([]domain.UnitRecord, error)

	// FinishRun records last, when non-nil, and the run's terminal status
	// atomically.
	FinishRun(ctx context.Context, run *domain.Run, last *domain.UnitRecord) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
	Plan   string // only runs of this plan, when set
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  50,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
