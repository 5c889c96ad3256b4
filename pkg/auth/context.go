package auth

import (
	"context"
	"fmt"
)

type contextKey string

// UserIDKey is the context key the middleware stores the caller's user id
// under.
const UserIDKey contextKey = "user_id"

// WithUserID returns a context carrying the user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the user id from the context. Returns empty string if
// the request was not authenticated.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// RequireUserID extracts the user id and errors when absent.
func RequireUserID(ctx context.Context) (string, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
