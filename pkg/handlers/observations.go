package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// ObservationsHandler handles observation HTTP requests.
type ObservationsHandler struct {
	synthesis services.SynthesisService
	logger    *zap.Logger
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(synthesis services.SynthesisService, logger *zap.Logger) *ObservationsHandler {
	return &ObservationsHandler{synthesis: synthesis, logger: logger}
}

// RegisterRoutes registers the observations handler's routes on the given mux.
func (h *ObservationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/projects/{pid}/observations", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("POST /api/projects/{pid}/observations/paste", authMiddleware.RequireAuth(h.Paste))
	mux.HandleFunc("POST /api/projects/{pid}/observations/{eid}/branch", authMiddleware.RequireAuth(h.Branch))
	mux.HandleFunc("POST /api/projects/{pid}/observations/{eid}/move", authMiddleware.RequireAuth(h.Move))
	mux.HandleFunc("PATCH /api/projects/{pid}/observations/{eid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}/observations/{eid}", authMiddleware.RequireAuth(h.Delete))
}

type contentRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/projects/{pid}/observations
// On persistence failure the error body echoes the submitted content so the
// client can restore it into the input field.
func (h *ObservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
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

	obs, err := h.synthesis.AddObservation(r.Context(), userID, projectID, req.Content)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_content": req.Content})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, obs); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type pasteRequest struct {
	Text string `json:"text"`
}

// Paste handles POST /api/projects/{pid}/observations/paste
// Bulk-imports one observation per non-blank line.
func (h *ObservationsHandler) Paste(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req pasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.synthesis.PasteObservations(r.Context(), userID, projectID, req.Text)
	if err != nil {
		writeServiceError(w, err, h.logger, map[string]string{"submitted_content": req.Text})
		return
	}
	if err := WriteJSON(w, http.StatusCreated, map[string]any{"observations": created}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Branch handles POST /api/projects/{pid}/observations/{eid}/branch
func (h *ObservationsHandler) Branch(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	observationID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	branch, err := h.synthesis.BranchObservation(r.Context(), userID, projectID, observationID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, branch); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type moveRequest struct {
	TargetIndex int `json:"target_index"`
}

// Move handles POST /api/projects/{pid}/observations/{eid}/move
func (h *ObservationsHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	observationID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	reordered, err := h.synthesis.ReorderObservations(r.Context(), userID, projectID, observationID, req.TargetIndex)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"observations": reordered}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}/observations/{eid}
func (h *ObservationsHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	if err := h.synthesis.UpdateObservation(r.Context(), userID, projectID, observationID, req.Content); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/projects/{pid}/observations/{eid}
func (h *ObservationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	observationID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.synthesis.DeleteObservation(r.Context(), userID, projectID, observationID); err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
