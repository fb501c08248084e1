package transport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/smorand/slides-team-hub/internal/middleware"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/slides"
)

// handleListDecks returns the team dashboard: all registered decks
// newest first, plus the team stats. A q parameter filters decks by
// title, description, or uploader.
func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	var (
		decks []*registry.Deck
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		decks, err = s.deps.Registry.SearchDecks(r.Context(), q)
	} else {
		decks, err = s.deps.Registry.ListDecks(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	stats, err := s.deps.Registry.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decks": decks,
		"stats": stats,
	})
}

// handleRegisterDeck registers (or re-registers) a presentation.
func (s *Server) handleRegisterDeck(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var input slides.RegisterDeckInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deck, err := s.deps.Slides.RegisterDeck(r.Context(), actor, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

// handleMyDecks returns the decks uploaded by the current user.
func (s *Server) handleMyDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.deps.Registry.ListDecksByUploader(r.Context(), middleware.GetUsername(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

// handleDeckDetails returns the registry record plus, when the user's
// Google account can reach it, the live per-slide details.
func (s *Server) handleDeckDetails(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deck, err := s.deps.Registry.GetDeck(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := map[string]any{"deck": deck}

	details, err := s.deps.Slides.GetDeckDetails(r.Context(), middleware.GetUsername(r.Context()), id)
	if err != nil {
		s.logger.Warn("live deck details unavailable",
			slog.String("presentation_id", id),
			slog.Any("error", err),
		)
	} else {
		response["details"] = details
	}

	writeJSON(w, http.StatusOK, response)
}

// handleUpdateDeck changes a deck's description (uploader or admin).
func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deck, err := s.deps.Slides.UpdateDeckDescription(r.Context(), actor, r.PathValue("id"), req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

// handleDeleteDeck removes a deck (uploader or admin).
func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.deps.Slides.DeleteDeck(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRefreshDeck re-checks one deck against Google Slides.
func (s *Server) handleRefreshDeck(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := s.deps.Slides.RefreshDeck(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRefreshAll re-checks every registered deck.
func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	results, err := s.deps.Slides.RefreshAll(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleSearchDrive searches the user's Drive for presentations.
func (s *Server) handleSearchDrive(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := s.deps.Slides.SearchDrivePresentations(
		r.Context(),
		middleware.GetUsername(r.Context()),
		r.URL.Query().Get("q"),
		limit,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleThumbnail serves the PNG thumbnail of one slide.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	slide := 1
	if raw := r.URL.Query().Get("slide"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid slide number")
			return
		}
		slide = n
	}

	data, err := s.deps.Slides.ExportSlideThumbnail(
		r.Context(),
		middleware.GetUsername(r.Context()),
		r.PathValue("id"),
		slide,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
