package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// SuggestionsHandler handles suggestion panel HTTP requests.
type SuggestionsHandler struct {
	cache     services.SuggestionCacheService
	synthesis services.SynthesisService
	logger    *zap.Logger
}

// NewSuggestionsHandler creates a new suggestions handler.
func NewSuggestionsHandler(cache services.SuggestionCacheService, synthesis services.SynthesisService, logger *zap.Logger) *SuggestionsHandler {
	return &SuggestionsHandler{cache: cache, synthesis: synthesis, logger: logger}
}

// RegisterRoutes registers the suggestions handler's routes on the given mux.
func (h *SuggestionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/projects/{pid}/suggestions/{kind}/{eid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/projects/{pid}/suggestions/{kind}/{eid}/more", authMiddleware.RequireAuth(h.GenerateMore))
	mux.HandleFunc("POST /api/projects/{pid}/suggestions/{kind}/{eid}/toggle", authMiddleware.RequireAuth(h.Toggle))
}

func parseSuggestionKind(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (prompts.Kind, bool) {
	kind := prompts.Kind(r.PathValue("kind"))
	switch kind {
	case prompts.KindHarms, prompts.KindCriteria, prompts.KindStrategies:
		return kind, true
	}
	if err := ErrorResponse(w, http.StatusBadRequest, "invalid_kind", "Unknown suggestion kind"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
	return "", false
}

// suggestionPanelResponse is the panel wire shape. Suggestions holds only
// the candidates still open for acceptance; accepted ones stay in All with
// their selected flag set so the toggle endpoint can still address them.
type suggestionPanelResponse struct {
	State       services.CacheState    `json:"state"`
	Suggestions []*services.Suggestion `json:"suggestions"`
	All         []*services.Suggestion `json:"all"`
	LastError   string                 `json:"last_error,omitempty"`
}

func panelResponse(e *services.CacheEntry) suggestionPanelResponse {
	return suggestionPanelResponse{
		State:       e.State,
		Suggestions: e.Visible(),
		All:         e.Suggestions,
		LastError:   e.LastError,
	}
}

// Get handles GET /api/projects/{pid}/suggestions/{kind}/{eid}
// Fetches candidates on first access and serves the cache afterwards.
func (h *SuggestionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	kind, ok := parseSuggestionKind(w, r, h.logger)
	if !ok {
		return
	}
	parentID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.cache.Ensure(r.Context(), userID, projectID, kind, parentID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, panelResponse(entry)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GenerateMore handles POST /api/projects/{pid}/suggestions/{kind}/{eid}/more
func (h *SuggestionsHandler) GenerateMore(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	kind, ok := parseSuggestionKind(w, r, h.logger)
	if !ok {
		return
	}
	parentID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.cache.GenerateMore(r.Context(), userID, projectID, kind, parentID)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}
	if err := WriteJSON(w, http.StatusOK, panelResponse(entry)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type toggleRequest struct {
	SuggestionID uuid.UUID `json:"suggestion_id"`
	Content      string    `json:"content"`
}

type toggleResponse struct {
	Selected bool `json:"selected"`
}

// Toggle handles POST /api/projects/{pid}/suggestions/{kind}/{eid}/toggle
// Accepting creates the entity; toggling again removes it. The cache's
// selection flag follows the outcome.
func (h *SuggestionsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	kind, ok := parseSuggestionKind(w, r, h.logger)
	if !ok {
		return
	}
	parentID, ok := ParseEntityID(w, r, h.logger)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	selected, err := h.synthesis.ToggleSuggestion(r.Context(), userID, projectID, kind, parentID, req.SuggestionID, req.Content)
	if err != nil {
		writeServiceError(w, err, h.logger, nil)
		return
	}

	h.cache.SetSelected(kind, parentID, req.SuggestionID, selected)

	if err := WriteJSON(w, http.StatusOK, toggleResponse{Selected: selected}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
