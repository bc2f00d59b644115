package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// Query limits
const (
	DefaultCycleLimit   = 20
	DefaultCaptureLimit = 50
	MaxQueryLimit       = 500
)

// QueryService answers read-only questions about collected cycles over HTTP
// and gRPC
type QueryService struct {
	store storage.Gateway
	mux   *http.ServeMux
}

// NewQueryService creates a query service over store
func NewQueryService(store storage.Gateway) *QueryService {
	q := &QueryService{store: store, mux: http.NewServeMux()}
	q.mux.HandleFunc("GET /api/v1/cycles", q.handleCycles)
	q.mux.HandleFunc("GET /api/v1/cycles/{id}", q.handleCycle)
	q.mux.HandleFunc("GET /api/v1/captures/recent", q.handleRecentCaptures)
	q.mux.HandleFunc("GET /api/v1/routes", q.handleRoutes)
	q.mux.HandleFunc("GET /api/v1/cameras", q.handleCameras)
	return q
}

// Cycles lists the most recent cycles
func (q *QueryService) Cycles(ctx context.Context, limit int) ([]model.CycleSummary, error) {
	cycles, err := q.store.GetCycles(ctx, clampLimit(limit, DefaultCycleLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return nonNil(cycles), nil
}

// Dashboard returns the full stored state of a cycle
func (q *QueryService) Dashboard(ctx context.Context, cycleID string) (*Dashboard, error) {
	return BuildDashboard(ctx, q.store, cycleID)
}

// Recent lists the newest captures with their image URLs
func (q *QueryService) Recent(ctx context.Context, limit int) ([]CaptureView, error) {
	captures, err := q.store.GetRecentCaptures(ctx, clampLimit(limit, DefaultCaptureLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	return CaptureViews(captures, q.store), nil
}

// Routes lists the current route set
func (q *QueryService) Routes(ctx context.Context) ([]model.Route, error) {
	routes, err := q.store.GetRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return nonNil(routes), nil
}

// Cameras lists every known camera
func (q *QueryService) Cameras(ctx context.Context) ([]model.Camera, error) {
	cameras, err := q.store.GetCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	return nonNil(cameras), nil
}

// ServeHTTP routes the /api/v1 query endpoints
func (q *QueryService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q.mux.ServeHTTP(w, r.WithContext(logging.EnsureLogger(r.Context())))
}

func (q *QueryService) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	cycles, err := q.Cycles(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, map[string]any{"cycles": cycles, "count": len(cycles)})
}

func (q *QueryService) handleCycle(w http.ResponseWriter, r *http.Request) {
	d, err := q.Dashboard(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, d)
}

func (q *QueryService) handleRecentCaptures(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	captures, err := q.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, map[string]any{"captures": captures, "count": len(captures)})
}

func (q *QueryService) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := q.Routes(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, map[string]any{"routes": routes})
}

func (q *QueryService) handleCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := q.Cameras(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, r, map[string]any{"cameras": cameras, "count": len(cameras)})
}

// limitParam parses ?limit=; zero means the endpoint default
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxQueryLimit)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorw(r.Context(), "Failed to encode query response", "path", r.URL.Path, "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logging.Errorw(r.Context(), "Query failed", "path", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
