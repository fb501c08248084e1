package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/smorand/slides-team-hub/internal/middleware"
	"github.com/smorand/slides-team-hub/internal/registry"
)

const defaultActivityLimit = 50

// handlePDFReport generates and serves the combined PDF report.
func (s *Server) handlePDFReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports not configured")
		return
	}

	rep, err := s.deps.Reports.GeneratePDF(
		r.Context(),
		middleware.GetUsername(r.Context()),
		s.reportLanguage(r),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.serveReport(w, rep.ContentType, rep.Filename, rep.Data)
}

// handleHTMLReport generates and serves the combined HTML report.
func (s *Server) handleHTMLReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports not configured")
		return
	}

	rep, err := s.deps.Reports.GenerateHTML(
		r.Context(),
		middleware.GetUsername(r.Context()),
		s.reportLanguage(r),
		s.deps.EmbedCheck,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.serveReport(w, rep.ContentType, rep.Filename, rep.Data)
}

func (s *Server) reportLanguage(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return s.deps.DefaultReportLanguage
}

func (s *Server) serveReport(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleActivities returns the team activity log, newest first. A
// user parameter narrows it to one member's actions.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var (
		activities []*registry.Activity
		err        error
	)
	if user := r.URL.Query().Get("user"); user != "" {
		activities, err = s.deps.Registry.ListActivitiesForUser(r.Context(), user, limit)
	} else {
		activities, err = s.deps.Registry.ListActivities(r.Context(), limit)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// handleAdminListUsers returns all accounts with their stats.
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Registry.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleAdminSetRole changes another user's role. Changing your own
// role is rejected, which also keeps the last admin from locking the
// team out by demoting themselves.
func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUsername(r.Context())
	target := r.PathValue("name")
	if target == actor {
		writeError(w, http.StatusBadRequest, "cannot change your own role")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Registry.UpdateRole(r.Context(), target, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}

	// Existing sessions carry the old role; force a fresh login.
	s.deps.Sessions.DeleteForUser(target)

	s.logActivity(r, actor, registry.ActionRoleChange, fmt.Sprintf("%s -> %s", target, req.Role))
	writeJSON(w, http.StatusOK, map[string]string{
		"username": target,
		"role":     req.Role,
	})
}

// handleAdminExportUsers serves the full account list as a JSON
// download.
func (s *Server) handleAdminExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Registry.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="users.json"`)
	writeJSON(w, http.StatusOK, users)
}
