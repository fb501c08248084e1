// Package transport serves the hub's JSON REST API.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/report"
	"github.com/smorand/slides-team-hub/internal/slides"
)

const (
	defaultPort            = 8080
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	Logger          *slog.Logger
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            defaultPort,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		AllowedOrigins:  []string{"*"},
		Logger:          slog.Default(),
	}
}

// SessionMiddleware is the interface for session authentication.
type SessionMiddleware interface {
	Middleware(next http.HandlerFunc) http.HandlerFunc
	RequireAdmin(next http.HandlerFunc) http.HandlerFunc
}

// RateLimitMiddleware is the interface for rate limiting middleware.
type RateLimitMiddleware interface {
	Middleware(next http.HandlerFunc) http.HandlerFunc
}

// Deps bundles the services the HTTP layer dispatches to. OAuth,
// Reports, RateLimit, and EmbedCheck are optional.
type Deps struct {
	Registry   *registry.Registry
	Sessions   *auth.SessionManager
	OAuth      *auth.OAuthManager
	Slides     *slides.Service
	Reports    *report.Generator
	SessionMW  SessionMiddleware
	RateLimit  RateLimitMiddleware
	EmbedCheck report.EmbedCheck

	// DefaultReportLanguage is applied when a report request carries no
	// lang parameter. Empty means English.
	DefaultReportLanguage string
}

// Server is the hub's HTTP server.
type Server struct {
	config     ServerConfig
	deps       Deps
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
	mu         sync.RWMutex
	running    bool
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaultReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaultIdleTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		config: config,
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: config.Logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	open := s.withMiddleware
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withMiddleware(s.deps.SessionMW.Middleware(h))
	}
	adminOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return authed(s.deps.SessionMW.RequireAdmin(h))
	}

	// Health check endpoint (no auth required)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Local accounts
	s.mux.HandleFunc("POST /api/register", open(s.handleRegister))
	s.mux.HandleFunc("POST /api/login", open(s.handleLogin))
	s.mux.HandleFunc("POST /api/logout", authed(s.handleLogout))
	s.mux.HandleFunc("GET /api/me", authed(s.handleMe))

	// Google connection. The callback arrives as a browser redirect and
	// authenticates through the CSRF state instead of a session.
	s.mux.HandleFunc("GET /auth/google", authed(s.handleGoogleAuth))
	s.mux.HandleFunc("GET /auth/google/callback", open(s.handleGoogleCallback))
	s.mux.HandleFunc("POST /api/google/disconnect", authed(s.handleGoogleDisconnect))

	// Decks
	s.mux.HandleFunc("GET /api/decks", authed(s.handleListDecks))
	s.mux.HandleFunc("POST /api/decks", authed(s.handleRegisterDeck))
	s.mux.HandleFunc("GET /api/decks/mine", authed(s.handleMyDecks))
	s.mux.HandleFunc("GET /api/decks/search", authed(s.handleSearchDrive))
	s.mux.HandleFunc("POST /api/decks/refresh", authed(s.handleRefreshAll))
	s.mux.HandleFunc("GET /api/decks/{id}", authed(s.handleDeckDetails))
	s.mux.HandleFunc("PATCH /api/decks/{id}", authed(s.handleUpdateDeck))
	s.mux.HandleFunc("DELETE /api/decks/{id}", authed(s.handleDeleteDeck))
	s.mux.HandleFunc("POST /api/decks/{id}/refresh", authed(s.handleRefreshDeck))
	s.mux.HandleFunc("GET /api/decks/{id}/thumbnail", authed(s.handleThumbnail))

	// Reports and activity log
	s.mux.HandleFunc("GET /api/reports/pdf", authed(s.handlePDFReport))
	s.mux.HandleFunc("GET /api/reports/html", authed(s.handleHTMLReport))
	s.mux.HandleFunc("GET /api/activities", authed(s.handleActivities))

	// Admin
	s.mux.HandleFunc("GET /api/admin/users", adminOnly(s.handleAdminListUsers))
	s.mux.HandleFunc("POST /api/admin/users/{name}/role", adminOnly(s.handleAdminSetRole))
	s.mux.HandleFunc("GET /api/admin/export/users", adminOnly(s.handleAdminExportUsers))
}

// withMiddleware wraps a handler with logging, CORS, and rate limiting.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		s.applyCORS(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if s.deps.RateLimit != nil {
			s.deps.RateLimit.Middleware(next)(rw, r)
		} else {
			next(rw, r)
		}

		s.logger.Info("request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
		)
	}
}

// applyCORS applies CORS headers to the response.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")
	}
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Handler exposes the route table (for tests).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until the context is
// canceled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting server",
		slog.Int("port", s.config.Port),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("server shutdown complete")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
