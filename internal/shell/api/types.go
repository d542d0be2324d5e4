package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// RunResponse is the response for run operations.
type RunResponse struct {
	ID         string         `json:"id"`
	Plan       string         `json:"plan"`
	ChainID    uint64         `json:"chain_id"`
	Deployer   string         `json:"deployer"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Units      []UnitResponse `json:"units"`
}

// UnitResponse is one unit outcome within a run, in deployment order.
type UnitResponse struct {
	Unit     string `json:"unit"`
	Artifact string `json:"artifact"`
	Status   string `json:"status"`
	Address  string `json:"address,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ListRunsResponse is the response for listing runs.
type ListRunsResponse struct {
	Runs   []RunResponse `json:"runs"`
	Total  int           `json:"total"` // matching runs across all pages
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AddressesResponse maps unit names to deployed addresses.
type AddressesResponse struct {
	RunID     string            `json:"run_id"`
	Status    string            `json:"status"`
	Addresses map[string]string `json:"addresses"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
