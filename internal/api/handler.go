// Package api provides the HTTP surface of the sync service: health, run
// triggering, and run history.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"air2graph/internal/domain"
	"air2graph/internal/ingest"
)

// Handler implements the HTTP endpoints.
type Handler struct {
	orchestrator *ingest.Orchestrator
	runs         domain.IngestRunRepository
	logger       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(orchestrator *ingest.Orchestrator, runs domain.IngestRunRepository, logger *slog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, runs: runs, logger: logger}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, httpStatusFromDomainError(err), map[string]string{"error": err.Error()})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type triggerRequest struct {
	Wipe bool `json:"wipe"`
}

// TriggerIngest starts an ingestion in the background and returns 202 with
// the run id. An empty body means a plain, non-wiping run.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
			return
		}
	}

	runID := h.orchestrator.Start(ingest.Options{Wipe: req.Wipe})
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"message": "accepted",
		"run_id":  runID,
	})
}

type runResponse struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	Wipe            bool    `json:"wipe"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at,omitempty"`
	Labels          int64   `json:"labels"`
	Nodes           int64   `json:"nodes"`
	EdgesCreated    int64   `json:"edges_created"`
	EdgesSkipped    int64   `json:"edges_skipped"`
	SourcesNotFound int64   `json:"sources_not_found"`
	TargetsNotFound int64   `json:"targets_not_found"`
	FailedBatches   int64   `json:"failed_batches"`
	Error           *string `json:"error,omitempty"`
}

func toRunResponse(run *domain.IngestRun) runResponse {
	resp := runResponse{
		ID:              run.ID,
		Status:          run.Status,
		Wipe:            run.Wipe,
		StartedAt:       domain.FormatTimestamp(run.StartedAt),
		Labels:          run.Labels,
		Nodes:           run.Nodes,
		EdgesCreated:    run.Edges.Created,
		EdgesSkipped:    run.Edges.Skipped,
		SourcesNotFound: run.Edges.SourcesNotFound,
		TargetsNotFound: run.Edges.TargetsNotFound,
		FailedBatches:   run.Edges.FailedBatches,
		Error:           run.Error,
	}
	if run.FinishedAt != nil {
		ts := domain.FormatTimestamp(*run.FinishedAt)
		resp.FinishedAt = &ts
	}
	return resp
}

// ListRuns returns recent runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context(), 50)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]runResponse, len(runs))
	for i := range runs {
		out[i] = toRunResponse(&runs[i])
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// GetRun returns one run by id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunResponse(run))
}
