package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/config"
)

const tokenTTL = 30 * 24 * time.Hour

// Service handles sign-in: it issues bearer tokens, sets the session
// cookie, and notifies an optional webhook about successful sign-ins.
type Service struct {
	cfg        config.AuthConfig
	store      *sessions.CookieStore
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewService creates the sign-in service. webhookURL may be empty.
func NewService(cfg config.AuthConfig, store *sessions.CookieStore, webhookURL string, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("auth"),
	}
}

type signInRequest struct {
	UserID string `json:"user_id"`
}

type signInResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token,omitempty"`
}

// HandleSignIn establishes a session for the given user id. With
// verification enabled it also returns a bearer token for non-browser
// clients. Identity proofing is delegated to the fronting auth provider;
// this endpoint only mints local credentials.
func (s *Service) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		httpError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	resp := signInResponse{UserID: req.UserID}

	if s.cfg.EnableVerification {
		token, err := IssueToken(req.UserID, s.cfg.TokenSecret, tokenTTL)
		if err != nil {
			s.logger.Error("token issue failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		resp.Token = token
	}

	if s.store != nil {
		session, _ := s.store.Get(r, SessionName)
		session.Values[SessionKeyUserID] = req.UserID
		if err := session.Save(r, w); err != nil {
			s.logger.Warn("session save failed", zap.Error(err))
		}
	}

	s.notifySignIn(req.UserID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// notifySignIn posts a fire-and-forget notification. Webhook failures never
// affect the sign-in response.
func (s *Service) notifySignIn(userID string) {
	if s.webhookURL == "" {
		return
	}
	go func() {
		payload, _ := json.Marshal(map[string]string{
			"user_id":      userID,
			"signed_in_at": time.Now().UTC().Format(time.RFC3339),
		})
		resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			s.logger.Debug("sign-in webhook failed", zap.Error(err))
			return
		}
		resp.Body.Close()
	}()
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
