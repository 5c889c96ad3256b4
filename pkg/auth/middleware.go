package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/config"
)

// LocalUserID identifies the single implicit user when verification is
// disabled (local-only mode without an auth provider).
const LocalUserID = "local"

// Middleware authenticates requests. With verification enabled it accepts
// an HS256 bearer token or a signed session cookie; disabled, it trusts the
// X-User-ID header and falls back to the shared local user.
type Middleware struct {
	cfg    config.AuthConfig
	store  *sessions.CookieStore
	logger *zap.Logger
}

// NewMiddleware creates the auth middleware. The session store may be nil
// when cookie sign-in is not in use.
func NewMiddleware(cfg config.AuthConfig, store *sessions.CookieStore, logger *zap.Logger) *Middleware {
	return &Middleware{cfg: cfg, store: store, logger: logger.Named("auth")}
}

// RequireAuth resolves the caller's user id and stores it in the request
// context for handlers to read via GetUserID.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.resolveUser(r)
		if !ok {
			m.unauthorized(w, "Authentication required")
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

func (m *Middleware) resolveUser(r *http.Request) (string, bool) {
	if !m.cfg.EnableVerification {
		if id := r.Header.Get("X-User-ID"); id != "" {
			return id, true
		}
		return LocalUserID, true
	}

	if header := r.Header.Get("Authorization"); header != "" {
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return "", false
		}
		claims, err := ParseToken(tokenString, m.cfg.TokenSecret)
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			return "", false
		}
		return claims.Subject, true
	}

	if userID := sessionUserID(m.store, r); userID != "" {
		return userID, true
	}
	return "", false
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
