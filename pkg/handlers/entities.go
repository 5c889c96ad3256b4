package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// EntitiesHandler handles harm, criterion, and strategy HTTP requests.
type EntitiesHandler struct {
	synthesis services.SynthesisService
	logger    *zap.Logger
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(synthesis services.SynthesisService, logger *zap.Logger) *EntitiesHandler {
	return &EntitiesHandler{synthesis: synthesis, logger: logger}
}

// RegisterRoutes registers the entities handler's routes on the given mux.
func (h *EntitiesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{pid}/observations/{eid}/harms", authMiddleware.RequireAuth(h.CreateHarm))
	mux.HandleFunc("PATCH /api/projects/{pid}/harms/{eid}", authMiddleware.RequireAuth(h.UpdateHarm))
	mux.HandleFunc("DELETE /api/projects/{pid}/harms/{eid}", authMiddleware.RequireAuth(h.DeleteHarm))

	mux.HandleFunc("POST /api/projects/{pid}/harms/{eid}/criteria", authMiddleware.RequireAuth(h.CreateCriterion))
	mux.HandleFunc("PATCH /api/projects/{pid}/criteria/{eid}", authMiddleware.RequireAuth(h.UpdateCriterion))
	mux.HandleFunc("DELETE /api/projects/{pid}/criteria/{eid}", authMiddleware.RequireAuth(h.DeleteCriterion))

	mux.HandleFunc("POST /api/projects/{pid}/criteria/{eid}/strategies", authMiddleware.RequireAuth(h.CreateStrategy))
	mux.HandleFunc("PATCH /api/projects/{pid}/strategies/{eid}", authMiddleware.RequireAuth(h.UpdateStrategy))
	mux.HandleFunc("DELETE /api/projects/{pid}/strategies/{eid}", authMiddleware.RequireAuth(h.DeleteStrategy))
}

// CreateHarm handles POST /api/projects/{pid}/observations/{eid}/harms
func (h *EntitiesHandler) CreateHarm(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	observationID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	harm, err := h.synthesis.AddHarm(r.Context(), userID, projectID, observationID, req.Content, nil)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_content": req.Content})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, harm); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateHarm handles PATCH /api/projects/{pid}/harms/{eid}
func (h *EntitiesHandler) UpdateHarm(w http.ResponseWriter, r *http.Request) {
	h.updateContent(w, r, h.synthesis.UpdateHarm)
}

// DeleteHarm handles DELETE /api/projects/{pid}/harms/{eid}
// Criteria under the harm are left orphaned, not deleted.
func (h *EntitiesHandler) DeleteHarm(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.synthesis.DeleteHarm)
}

// CreateCriterion handles POST /api/projects/{pid}/harms/{eid}/criteria
func (h *EntitiesHandler) CreateCriterion(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	harmID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	criterion, err := h.synthesis.AddCriterion(r.Context(), userID, projectID, harmID, req.Content, nil)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_content": req.Content})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, criterion); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateCriterion handles PATCH /api/projects/{pid}/criteria/{eid}
func (h *EntitiesHandler) UpdateCriterion(w http.ResponseWriter, r *http.Request) {
	h.updateContent(w, r, h.synthesis.UpdateCriterion)
}

// DeleteCriterion handles DELETE /api/projects/{pid}/criteria/{eid}
func (h *EntitiesHandler) DeleteCriterion(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.synthesis.DeleteCriterion)
}

type strategyRequest struct {
	Content string              `json:"content"`
	Kind    models.StrategyKind `json:"kind,omitempty"`
}

// CreateStrategy handles POST /api/projects/{pid}/criteria/{eid}/strategies
func (h *EntitiesHandler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	criterionID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	strategy, err := h.synthesis.AddStrategy(r.Context(), userID, projectID, criterionID, req.Content, req.Kind, nil)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_content": req.Content})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, strategy); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStrategy handles PATCH /api/projects/{pid}/strategies/{eid}
func (h *EntitiesHandler) UpdateStrategy(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	strategyID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.synthesis.UpdateStrategy(r.Context(), userID, projectID, strategyID, req.Content, req.Kind); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteStrategy handles DELETE /api/projects/{pid}/strategies/{eid}
func (h *EntitiesHandler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.synthesis.DeleteStrategy)
}

type contentUpdateFn func(ctx context.Context, ownerID string, projectID, entityID uuid.UUID, content string) error

func (h *EntitiesHandler) updateContent(w http.ResponseWriter, r *http.Request, update contentUpdateFn) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := update(r.Context(), userID, projectID, entityID, req.Content); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteFn func(ctx context.Context, ownerID string, projectID, entityID uuid.UUID) error

func (h *EntitiesHandler) deleteEntity(w http.ResponseWriter, r *http.Request, del deleteFn) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	entityID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	if err := del(r.Context(), userID, projectID, entityID); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
