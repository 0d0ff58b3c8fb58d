package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/groveplace/domainsearch/internal/apierr"
	"github.com/groveplace/domainsearch/internal/controller"
	"github.com/groveplace/domainsearch/internal/job"
	"github.com/groveplace/domainsearch/internal/jobindex"
)

// Controller is the subset of *controller.Controller the handlers call.
type Controller interface {
	Start(ctx context.Context, req job.CreateRequest) (*job.Job, error)
	Status(ctx context.Context, jobID string) (*controller.StatusSnapshot, error)
	Results(ctx context.Context, jobID string) (*controller.ResultsSnapshot, error)
	Followup(ctx context.Context, jobID string) (*job.SearchArtifact, error)
	Resume(ctx context.Context, jobID string, responses job.FollowupResponses) error
	Cancel(ctx context.Context, jobID string) error
	Stream(ctx context.Context, jobID string) (*controller.StreamSnapshot, error)
	Reindex(ctx context.Context, jobID string) error
}

// Index is the subset of *jobindex.Index the global handlers call.
type Index interface {
	Upsert(ctx context.Context, e *jobindex.Entry) error
	List(ctx context.Context, limit, offset int, status string) ([]*jobindex.Entry, int, error)
	Recent(ctx context.Context, limit int) ([]*jobindex.Entry, error)
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	ctrl  Controller
	index Index
}

// NewHandler constructs a Handler with the given dependencies.
func NewHandler(ctrl Controller, index Index) *Handler {
	return &Handler{ctrl: ctrl, index: index}
}

// RegisterRoutes registers every route in the RPC surface (§6).
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, h.Health)

	// Job-scoped RPC.
	mux.HandleFunc("POST /start", h.Start)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /results", h.Results)
	mux.HandleFunc("GET /followup", h.Followup)
	mux.HandleFunc("POST /resume", h.Resume)
	mux.HandleFunc("POST /cancel", h.Cancel)
	mux.HandleFunc("GET /stream", h.Stream)

	// Global RPC (controller registry / index, §6).
	mux.HandleFunc("POST /api/search", h.APISearch)
	mux.HandleFunc("GET /api/jobs/list", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/recent", h.RecentJobs)
	mux.HandleFunc("POST /api/backfill", h.Backfill)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start handles POST /start (§6). Body carries job_id directly.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req job.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	j, err := h.ctrl.Start(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// Status handles GET /status?job_id=... (§6).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}
	snap, err := h.ctrl.Status(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Results handles GET /results?job_id=... (§6).
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}
	snap, err := h.ctrl.Results(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Followup handles GET /followup?job_id=... (§6).
func (h *Handler) Followup(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}
	artifact, err := h.ctrl.Followup(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// Resume handles POST /resume?job_id=... (§6). Body: {followup_responses}.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body struct {
		FollowupResponses job.FollowupResponses `json:"followup_responses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.ctrl.Resume(r.Context(), jobID, body.FollowupResponses); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// Cancel handles POST /cancel?job_id=... (§6).
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job_id parameter")
		return
	}
	if err := h.ctrl.Cancel(r.Context(), jobID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// apiSearchRequest is the body of POST /api/search: everything /start needs
// except job_id, which this endpoint allocates (§6 "Allocate job id; create
// index row; forward to /start").
type apiSearchRequest struct {
	ClientID       string            `json:"client_id"`
	Quiz           job.QuizResponses `json:"quiz_responses"`
	DriverProvider string            `json:"driver_provider,omitempty"`
	SwarmProvider  string            `json:"swarm_provider,omitempty"`
}

// APISearch handles POST /api/search (§6).
func (h *Handler) APISearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req apiSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	j, err := h.ctrl.Start(r.Context(), job.CreateRequest{
		JobID:          uuid.New().String(),
		ClientID:       req.ClientID,
		Quiz:           req.Quiz,
		DriverProvider: req.DriverProvider,
		SwarmProvider:  req.SwarmProvider,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// ListJobs handles GET /api/jobs/list?limit&offset&status (§6).
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limit"), 20)
	offset := parseIntParam(r.URL.Query().Get("offset"), 0)
	status := r.URL.Query().Get("status")

	entries, total, err := h.index.List(r.Context(), limit, offset, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if entries == nil {
		entries = []*jobindex.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   entries,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// RecentJobs handles GET /api/jobs/recent?limit (§6).
func (h *Handler) RecentJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limit"), 20)
	entries, err := h.index.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recent jobs")
		return
	}
	if entries == nil {
		entries = []*jobindex.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": entries})
}

// Backfill handles POST /api/backfill (§6): body {job_ids}, rebuilds the
// index row for each by re-deriving it from the job's own store.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results := make(map[string]string, len(body.JobIDs))
	for _, id := range body.JobIDs {
		if err := h.ctrl.Reindex(r.Context(), id); err != nil {
			results[id] = err.Error()
			continue
		}
		results[id] = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func parseIntParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps a controller error through apierr.StatusCode (§7
// "Propagation policy").
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, apierr.StatusCode(err), err.Error())
}
