package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	version   string
	storeMode string
	logger    *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version, storeMode string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{version: version, storeMode: storeMode, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	StoreMode string `json:"store_mode"`
}

// Health handles GET /health
// StoreMode distinguishes a postgres-backed deployment from the in-memory
// local-only fallback.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: h.version, StoreMode: h.storeMode}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
