package transport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/middleware"
	"github.com/smorand/slides-team-hub/internal/registry"
)

// userView is the public shape of an account.
type userView struct {
	Username        string `json:"username"`
	Role            string `json:"role"`
	GoogleConnected bool   `json:"google_connected"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a local account and logs the new user in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password != req.Confirm {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := &registry.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         registry.RoleMember,
	}
	if err := s.deps.Registry.CreateUser(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	s.logActivity(r, req.Username, registry.ActionRegister, "")

	session, err := s.deps.Sessions.Create(user.Username, user.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.setSessionCookie(w, session.Token)

	s.logger.Info("user registered", slog.String("username", user.Username))
	writeJSON(w, http.StatusCreated, s.userView(r, user))
}

// handleLogin authenticates a local account and opens a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.deps.Registry.GetUser(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, registry.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := s.deps.Registry.RecordLogin(r.Context(), user.Username); err != nil {
		s.logger.Warn("failed to record login", slog.Any("error", err))
	}
	s.logActivity(r, user.Username, registry.ActionLogin, "")

	session, err := s.deps.Sessions.Create(user.Username, user.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.setSessionCookie(w, session.Token)

	writeJSON(w, http.StatusOK, s.userView(r, user))
}

// handleLogout ends the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	s.deps.Sessions.Delete(middleware.GetSessionToken(r.Context()))
	s.clearSessionCookie(w)

	s.logActivity(r, username, registry.ActionLogout, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the authenticated user's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.userView(r, user))
}

// handleGoogleAuth starts the Google OAuth flow and returns the
// authorization URL for the client to open.
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	if s.deps.OAuth == nil {
		writeError(w, http.StatusServiceUnavailable, "google authentication not configured")
		return
	}

	authURL, err := s.deps.OAuth.StartFlow(middleware.GetUsername(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

// handleGoogleCallback completes the OAuth flow. Google redirects the
// browser here with the state and authorization code.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.OAuth == nil {
		writeError(w, http.StatusServiceUnavailable, "google authentication not configured")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeError(w, http.StatusBadRequest, "authorization declined: "+errParam)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	username, err := s.deps.OAuth.CompleteFlow(r.Context(), state, code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logActivity(r, username, registry.ActionGoogleAuth, "")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "connected",
		"username": username,
	})
}

// handleGoogleDisconnect removes the stored Google credential.
func (s *Server) handleGoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.deps.OAuth == nil {
		writeError(w, http.StatusServiceUnavailable, "google authentication not configured")
		return
	}

	username := middleware.GetUsername(r.Context())
	if err := s.deps.OAuth.Disconnect(r.Context(), username); err != nil {
		writeServiceError(w, err)
		return
	}

	s.logActivity(r, username, registry.ActionGoogleDisconnect, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// currentUser loads the session's account from the registry, so a role
// change or deletion takes effect without waiting for session expiry.
func (s *Server) currentUser(r *http.Request) (*registry.User, error) {
	return s.deps.Registry.GetUser(r.Context(), middleware.GetUsername(r.Context()))
}

func (s *Server) userView(r *http.Request, user *registry.User) userView {
	connected := false
	if s.deps.OAuth != nil {
		connected = s.deps.OAuth.Connected(r.Context(), user.Username)
	}
	return userView{
		Username:        user.Username,
		Role:            user.Role,
		GoogleConnected: connected,
	}
}

func (s *Server) logActivity(r *http.Request, username, action, detail string) {
	if err := s.deps.Registry.LogActivity(r.Context(), username, action, detail); err != nil {
		s.logger.Warn("failed to log activity",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
