package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// ProjectsHandler handles project-level HTTP requests.
type ProjectsHandler struct {
	synthesis services.SynthesisService
	export    services.ExportService
	logger    *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(synthesis services.SynthesisService, export services.ExportService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{synthesis: synthesis, export: export, logger: logger}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/projects", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/projects/{pid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("GET /api/projects/{pid}/tree", authMiddleware.RequireAuth(h.Tree))
	mux.HandleFunc("PATCH /api/projects/{pid}", authMiddleware.RequireAuth(h.Rename))
	mux.HandleFunc("POST /api/projects/{pid}/archive", authMiddleware.RequireAuth(h.ToggleArchived))
	mux.HandleFunc("DELETE /api/projects/{pid}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/projects/{pid}/export/outline", authMiddleware.RequireAuth(h.ExportOutline))
	mux.HandleFunc("GET /api/projects/{pid}/export/matrix", authMiddleware.RequireAuth(h.ExportMatrix))
}

// List handles GET /api/projects
// Projects are ordered by most recent activity anywhere in their tree.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	projects, err := h.synthesis.ListProjects(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"projects": projects}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type createProjectRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	project, err := h.synthesis.CreateProject(r.Context(), userID, req.Name)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_name": req.Name})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.synthesis.GetProject(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Tree handles GET /api/projects/{pid}/tree
// Returns the full synthesis snapshot every view renders from.
func (h *ProjectsHandler) Tree(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	tree, err := h.synthesis.Tree(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, tree); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type renameProjectRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /api/projects/{pid}
func (h *ProjectsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req renameProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	project, err := h.synthesis.RenameProject(r.Context(), userID, projectID, req.Name)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ToggleArchived handles POST /api/projects/{pid}/archive
func (h *ProjectsHandler) ToggleArchived(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.synthesis.ToggleArchived(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.synthesis.DeleteProject(r.Context(), userID, projectID); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportOutline handles GET /api/projects/{pid}/export/outline
func (h *ProjectsHandler) ExportOutline(w http.ResponseWriter, r *http.Request) {
	h.exportAs(w, r, h.export.Outline, "text/markdown; charset=utf-8")
}

// ExportMatrix handles GET /api/projects/{pid}/export/matrix
func (h *ProjectsHandler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	h.exportAs(w, r, h.export.Matrix, "text/tab-separated-values; charset=utf-8")
}

func (h *ProjectsHandler) exportAs(w http.ResponseWriter, r *http.Request, render func(ctx context.Context, ownerID string, projectID uuid.UUID) (string, error), contentType string) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	out, err := render(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write([]byte(out)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
