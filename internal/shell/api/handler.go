// Package api provides a read-only HTTP view of the deployment run ledger.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
			r.Get("/{id}/addresses", h.handleGetAddresses)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListRuns(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		h.logger.Warn("ledger not ready", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts.Plan = r.URL.Query().Get("plan")
	opts = opts.Normalize()

	runs, err := h.store.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}
	total, err := h.store.CountRuns(r.Context(), opts.Plan)
	if err != nil {
		h.logger.Error("failed to count runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}

	resp := ListRunsResponse{
		Runs:   make([]RunResponse, 0, len(runs)),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runToResponse(&run))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, runToResponse(run))
}

// handleGetAddresses returns the deployed addresses of a run keyed by unit,
// the shape a frontend consumes as configuration.
func (h *Handler) handleGetAddresses(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	addresses := make(map[string]string)
	for _, u := range run.Deployed() {
		addresses[u.Unit] = u.Address
	}
	h.writeJSON(w, http.StatusOK, AddressesResponse{
		RunID:     run.ID,
		Status:    string(run.Status),
		Addresses: addresses,
	})
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "run not found", "run_not_found")
			return nil, false
		}
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get run", "internal_error")
		return nil, false
	}
	return run, true
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func runToResponse(run *domain.Run) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		Plan:       run.Plan,
		ChainID:    run.ChainID,
		Deployer:   run.Deployer,
		Status:     string(run.Status),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Units:      make([]UnitResponse, 0, len(run.Units)),
	}
	for _, u := range run.Units {
		resp.Units = append(resp.Units, UnitResponse{
			Unit:     u.Unit,
			Artifact: u.Artifact,
			Status:   u.Status,
			Address:  u.Address,
			TxHash:   u.TxHash,
			Error:    u.Error,
		})
	}
	return resp
}

func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return false
}
