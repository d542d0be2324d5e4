// Package chain submits contract deployments to an EVM network and waits
// for their receipts.
package chain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed = errors.New("rpc connection failed")
	ErrChainIDMismatch  = errors.New("rpc chain id does not match configuration")
	ErrNoBytecode       = errors.New("artifact has no creation bytecode")
	ErrReverted         = errors.New("deployment transaction reverted")
	ErrTimeout          = errors.New("timed out waiting for receipt")
)

// ChainError wraps errors with additional context.
type ChainError struct {
	Op      string // Operation that failed (e.g., "Deploy")
	Ref     string // Artifact reference or transaction hash if applicable
	Message string
	Err     error
}

func (e *ChainError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Ref, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// NewChainError creates a new ChainError.
func NewChainError(op, ref, message string, err error) *ChainError {
	return &ChainError{
		Op:      op,
		Ref:     ref,
		Message: message,
		Err:     err,
	}
}
