package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stubStore implements store.Store for testing.
type stubStore struct {
	runs  []*domain.Run
	err   error // If set, all operations return this error
	lastL store.ListOptions
}

func (s *stubStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if s.err != nil {
		return s.err
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *stubStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.NewStoreError("GetRun", "run", id, "not found", store.ErrNotFound)
}

func (s *stubStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return s.err
}

func (s *stubStore) ListRuns(ctx context.Context, opts store.ListOptions) ([]domain.Run, error) {
	s.lastL = opts
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Run
	for _, r := range s.matching(opts.Plan) {
		out = append(out, *r)
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *stubStore) CountRuns(ctx context.Context, plan string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return len(s.matching(plan)), nil
}

func (s *stubStore) matching(plan string) []*domain.Run {
	var out []*domain.Run
	for _, r := range s.runs {
		if plan == "" || r.Plan == plan {
			out = append(out, r)
		}
	}
	return out
}

func (s *stubStore) RecordUnit(ctx context.Context, rec *domain.UnitRecord) error {
	return s.err
}

func (s *stubStore) ListUnitRecords(ctx context.Context, runID string) ([]domain.UnitRecord, error) {
	return nil, s.err
}

func (s *stubStore) FinishRun(ctx context.Context, run *domain.Run, last *domain.UnitRecord) error {
	return s.err
}

func (s *stubStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *stubStore) Close() error { return nil }

func sampleRun() *domain.Run {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Run{
		ID:         "run-1",
		Plan:       "insurance",
		ChainID:    31337,
		Deployer:   "0x01",
		Status:     domain.RunFailed,
		Error:      "unit MarketPlace (MarketPlace): deployment failed: reverted",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Units: []domain.UnitRecord{
			{Unit: "AccountLogic", Artifact: "AccountLogic", Status: "deployed", Address: "0xaa"},
			{Unit: "AccountProxy", Artifact: "AccountProxy", Status: "deployed", Address: "0xbb"},
			{Unit: "MarketPlace", Artifact: "MarketPlace", Status: "failed", Error: "reverted"},
		},
	}
}

func doRequest(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	w := doRequest(t, NewHandler(&stubStore{}, nil), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReady(t *testing.T) {
	w := doRequest(t, NewHandler(&stubStore{}, nil), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, NewHandler(&stubStore{err: assert.AnError}, nil), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "failed", resp.Checks["database"])
}

// =============================================================================
// Run Tests
// =============================================================================

func TestListRuns(t *testing.T) {
	other := &domain.Run{ID: "run-2", Plan: "tokens", Status: domain.RunSucceeded}
	s := &stubStore{runs: []*domain.Run{sampleRun(), other}}
	h := NewHandler(s, nil)

	w := doRequest(t, h, "/api/v1/runs?limit=5&offset=0")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListRunsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 5, resp.Limit)
	assert.Equal(t, "run-1", resp.Runs[0].ID)

	w = doRequest(t, h, "/api/v1/runs?plan=tokens")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "run-2", resp.Runs[0].ID)
	assert.Equal(t, "tokens", s.lastL.Plan)
}

func TestListRuns_TotalSpansPages(t *testing.T) {
	s := &stubStore{runs: []*domain.Run{
		{ID: "run-1", Plan: "insurance", Status: domain.RunSucceeded},
		{ID: "run-2", Plan: "insurance", Status: domain.RunFailed},
		{ID: "run-3", Plan: "tokens", Status: domain.RunSucceeded},
	}}
	h := NewHandler(s, nil)

	w := doRequest(t, h, "/api/v1/runs?limit=1&offset=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListRunsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "run-2", resp.Runs[0].ID)
	assert.Equal(t, 3, resp.Total)

	w = doRequest(t, h, "/api/v1/runs?limit=1&plan=insurance")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, 2, resp.Total)
}

func TestListRuns_StoreError(t *testing.T) {
	w := doRequest(t, NewHandler(&stubStore{err: assert.AnError}, nil), "/api/v1/runs")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "internal_error", resp.Code)
}

func TestGetRun(t *testing.T) {
	h := NewHandler(&stubStore{runs: []*domain.Run{sampleRun()}}, nil)

	w := doRequest(t, h, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RunResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "failed", resp.Status)
	require.Len(t, resp.Units, 3)
	assert.Equal(t, []string{"AccountLogic", "AccountProxy", "MarketPlace"},
		[]string{resp.Units[0].Unit, resp.Units[1].Unit, resp.Units[2].Unit})
	assert.Equal(t, "reverted", resp.Units[2].Error)
}

func TestGetRun_NotFound(t *testing.T) {
	w := doRequest(t, NewHandler(&stubStore{}, nil), "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "run_not_found", resp.Code)
}

func TestGetAddresses(t *testing.T) {
	h := NewHandler(&stubStore{runs: []*domain.Run{sampleRun()}}, nil)

	w := doRequest(t, h, "/api/v1/runs/run-1/addresses")
	require.Equal(t, http.StatusOK, w.Code)

	var resp AddressesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, map[string]string{"AccountLogic": "0xaa", "AccountProxy": "0xbb"}, resp.Addresses)
}
