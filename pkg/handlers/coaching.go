package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// CoachingHandler handles the draft coaching loop. The client reports text
// changes as they happen and polls for feedback; the debounce and staleness
// rules live in the coaching service.
type CoachingHandler struct {
	coaching services.CoachingService
	logger   *zap.Logger
}

// NewCoachingHandler creates a new coaching handler.
func NewCoachingHandler(coaching services.CoachingService, logger *zap.Logger) *CoachingHandler {
	return &CoachingHandler{coaching: coaching, logger: logger}
}

// RegisterRoutes registers the coaching handler's routes on the given mux.
func (h *CoachingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/coaching/{key}/text", authMiddleware.RequireAuth(h.TextChanged))
	mux.HandleFunc("GET /api/coaching/{key}", authMiddleware.RequireAuth(h.Feedback))
	mux.HandleFunc("DELETE /api/coaching/{key}", authMiddleware.RequireAuth(h.Forget))
}

func parseCoachingKey(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "key", "invalid_key", "Invalid coaching key format", logger)
}

type textChangedRequest struct {
	Text string `json:"text"`
}

// TextChanged handles POST /api/coaching/{key}/text
func (h *CoachingHandler) TextChanged(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	key, ok := parseCoachingKey(w, r, h.logger)
	if !ok {
		return
	}

	var req textChangedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.coaching.TextChanged(userID, key, req.Text)
	w.WriteHeader(http.StatusAccepted)
}

type feedbackResponse struct {
	Feedback string `json:"feedback"`
	Pending  bool   `json:"pending"`
}

// Feedback handles GET /api/coaching/{key}
// An empty feedback string with pending false means the draft passed.
func (h *CoachingHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	key, ok := parseCoachingKey(w, r, h.logger)
	if !ok {
		return
	}

	feedback, pending := h.coaching.Feedback(userID, key)
	if err := WriteJSON(w, http.StatusOK, feedbackResponse{Feedback: feedback, Pending: pending}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Forget handles DELETE /api/coaching/{key}
// Called when the draft is submitted or abandoned.
func (h *CoachingHandler) Forget(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	key, ok := parseCoachingKey(w, r, h.logger)
	if !ok {
		return
	}

	h.coaching.Forget(userID, key)
	w.WriteHeader(http.StatusNoContent)
}
