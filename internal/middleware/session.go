package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/registry"
)

// Context keys for storing authenticated data.
type contextKey string

const (
	// SessionTokenContextKey is the context key for the session token.
	SessionTokenContextKey contextKey = "session_token"
	// UsernameContextKey is the context key for the authenticated username.
	UsernameContextKey contextKey = "username"
	// RoleContextKey is the context key for the authenticated role.
	RoleContextKey contextKey = "role"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "hub_session"

// Sentinel errors for session validation.
var (
	ErrMissingSession    = errors.New("missing session token")
	ErrInvalidAuthHeader = errors.New("invalid Authorization header format")
	ErrAdminRequired     = errors.New("admin role required")
)

// SessionMiddlewareConfig holds configuration for the session middleware.
type SessionMiddlewareConfig struct {
	Sessions *auth.SessionManager
	Logger   *slog.Logger
}

// SessionMiddleware authenticates requests against the session manager.
// Tokens are accepted from the session cookie or a Bearer Authorization
// header, so both browser clients and scripted clients work.
type SessionMiddleware struct {
	config SessionMiddlewareConfig
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(config SessionMiddlewareConfig) *SessionMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &SessionMiddleware{config: config}
}

// Middleware returns an HTTP middleware function that requires a valid
// session and enriches the request context with the user identity.
func (m *SessionMiddleware) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractSessionToken(r)
		if err != nil {
			m.writeUnauthorized(w, err.Error())
			return
		}

		session, err := m.config.Sessions.Get(token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionExpired) {
				m.writeUnauthorized(w, "session expired")
				return
			}
			m.writeUnauthorized(w, "invalid session")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, SessionTokenContextKey, session.Token)
		ctx = context.WithValue(ctx, UsernameContextKey, session.Username)
		ctx = context.WithValue(ctx, RoleContextKey, session.Role)

		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin wraps a handler so only admin sessions reach it. It must
// run inside Middleware, which populates the role in the context.
func (m *SessionMiddleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r.Context()) != registry.RoleAdmin {
			m.config.Logger.Warn("admin endpoint denied",
				slog.String("username", GetUsername(r.Context())),
				slog.String("path", r.URL.Path),
			)
			m.writeError(w, http.StatusForbidden, ErrAdminRequired.Error())
			return
		}
		next(w, r)
	}
}

// extractSessionToken pulls the session token from the cookie or the
// Authorization header, preferring the cookie.
func extractSessionToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingSession
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidAuthHeader
	}

	return token, nil
}

// writeUnauthorized writes a 401 Unauthorized response.
func (m *SessionMiddleware) writeUnauthorized(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusUnauthorized, message)
}

// writeError writes a JSON error response.
func (m *SessionMiddleware) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// GetSessionToken retrieves the session token from the request context.
func GetSessionToken(ctx context.Context) string {
	if v := ctx.Value(SessionTokenContextKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetUsername retrieves the authenticated username from the request context.
func GetUsername(ctx context.Context) string {
	if v := ctx.Value(UsernameContextKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetRole retrieves the authenticated role from the request context.
func GetRole(ctx context.Context) string {
	if v := ctx.Value(RoleContextKey); v != nil {
		return v.(string)
	}
	return ""
}
