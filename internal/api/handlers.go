package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/compiler"
	"github.com/reelforge/reelforge/internal/db"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/queue"
	"github.com/reelforge/reelforge/internal/storage"
)

// ScenePlanner turns an article into a scene graph. Implemented by
// services.PlannerService.
type ScenePlanner interface {
	PlanScenes(ctx context.Context, article, niche string) (*models.JobInput, error)
}

type Handler struct {
	db      *db.DB
	queue   *queue.Queue
	storage *storage.Storage
	planner ScenePlanner
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, planner ScenePlanner) *Handler {
	return &Handler{
		db:      database,
		queue:   q,
		storage: stor,
		planner: planner,
	}
}

// CreateCompilation handles POST /v1/compilations.
// The caller submits either a ready scene graph or an article to plan into
// one. The graph is fully validated here, before the row or queue entry
// exist — malformed input never reaches the worker.
func (h *Handler) CreateCompilation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCompilationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var input *models.JobInput
	switch {
	case len(req.Scenes) > 0 && req.Article != "":
		respondError(w, http.StatusBadRequest, "Provide either scenes or an article, not both")
		return

	case len(req.Scenes) > 0:
		input = &models.JobInput{Niche: req.Niche, Scenes: req.Scenes}

	case req.Article != "":
		planned, err := h.planner.PlanScenes(r.Context(), req.Article, req.Niche)
		if err != nil {
			respondError(w, http.StatusBadGateway, "Scene planning failed: "+err.Error())
			return
		}
		input = planned

	default:
		respondError(w, http.StatusBadRequest, "Either scenes or an article is required")
		return
	}

	compilationID := uuid.New()

	job, err := compiler.ParseJob(compilationID, input)
	if err != nil {
		var verr *compiler.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid scene graph")
		return
	}

	spec, err := specJSONB(input)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode scene graph")
		return
	}

	compilation := &models.Compilation{
		ID:         compilationID,
		Niche:      job.Niche,
		SceneCount: len(job.Scenes),
		Status:     models.CompilationStatusQueued,
		Spec:       spec,
	}

	if err := h.db.CreateCompilation(r.Context(), compilation); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create compilation")
		return
	}

	if err := h.queue.EnqueueCompile(r.Context(), compilationID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue compilation")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateCompilationResponse{
		CompilationID: compilationID,
		Status:        compilation.Status,
		SceneCount:    compilation.SceneCount,
	})
}

// ListCompilations handles GET /v1/compilations
// Query params:
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListCompilations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	compilations, total, err := h.db.ListCompilations(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list compilations")
		return
	}

	if compilations == nil {
		compilations = []models.Compilation{}
	}

	respondJSON(w, http.StatusOK, models.ListCompilationsResponse{
		Compilations: compilations,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}

// GetCompilation handles GET /v1/compilations/{id}
func (h *Handler) GetCompilation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid compilation ID")
		return
	}

	compilation, err := h.db.GetCompilation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Compilation not found")
		return
	}

	response := models.CompilationResponse{Compilation: *compilation}

	if compilation.Status == models.CompilationStatusCompleted && compilation.FinalVideoPath != nil {
		if url, err := h.storage.GetSignedURL(r.Context(), *compilation.FinalVideoPath, 3600); err == nil {
			response.DownloadURL = &url
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// GetCompilationDownload handles GET /v1/compilations/{id}/download
func (h *Handler) GetCompilationDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid compilation ID")
		return
	}

	compilation, err := h.db.GetCompilation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Compilation not found")
		return
	}

	if compilation.Status != models.CompilationStatusCompleted || compilation.FinalVideoPath == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	// Signed URL valid for 1 hour
	signedURL, err := h.storage.GetSignedURL(r.Context(), *compilation.FinalVideoPath, 3600)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// DeleteCompilation handles DELETE /v1/compilations/{id}. In-flight
// compilations cannot be deleted; wait for a terminal status first.
func (h *Handler) DeleteCompilation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid compilation ID")
		return
	}

	compilation, err := h.db.GetCompilation(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Compilation not found")
		return
	}

	switch compilation.Status {
	case models.CompilationStatusCompleted, models.CompilationStatusFailed:
	default:
		respondError(w, http.StatusConflict, "Compilation is still in progress")
		return
	}

	if err := h.db.DeleteCompilation(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete compilation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// specJSONB stores the submitted scene graph on the row so the worker can
// re-parse it without a second wire format.
func specJSONB(input *models.JobInput) (models.JSONB, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	var spec models.JSONB
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
