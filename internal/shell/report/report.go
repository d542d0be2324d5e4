// Package report writes the addresses produced by a run to the console and
// to files consumed downstream (JSON config, .env for frontends).
package report

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/chaindeploy/internal/core/deployment"
)

// Summary is the outcome of a run as reporters see it. Results hold every
// deployed unit in deployment order; Err is set when the run halted.
type Summary struct {
	RunID      string
	Plan       string
	ChainID    uint64
	Deployer   string
	Results    []deployment.Result
	Err        error
	FinishedAt time.Time
}

// Succeeded reports whether the run finished without error.
func (s Summary) Succeeded() bool {
	return s.Err == nil
}

// Status returns "succeeded" or "failed".
func (s Summary) Status() string {
	if s.Err != nil {
		return "failed"
	}
	return "succeeded"
}

// Reporter emits a run summary to one sink.
type Reporter interface {
	Report(ctx context.Context, s Summary) error
}

// Multi fans a summary out to every reporter. All reporters run even when
// some fail; their errors are joined.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, s Summary) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
