package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the sign-in session cookie.
const SessionName = "worksheet-session"

// SessionKeyUserID stores the signed-in user id inside the session.
const SessionKeyUserID = "user_id"

// NewSessionStore builds the cookie-based session store used by browser
// sign-in. The secret can be any passphrase; it is SHA-256 hashed to derive
// the 32-byte signing key and must stay consistent across restarts.
func NewSessionStore(secret string) *sessions.CookieStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 30, // 30 days
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionUserID reads the signed-in user id from the request's session
// cookie, if any.
func sessionUserID(store *sessions.CookieStore, r *http.Request) string {
	if store == nil {
		return ""
	}
	session, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	if v, ok := session.Values[SessionKeyUserID].(string); ok {
		return v
	}
	return ""
}
