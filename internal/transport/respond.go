package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/permissions"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/report"
	"github.com/smorand/slides-team-hub/internal/slides"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error onto an HTTP status and
// writes it. Unrecognized errors are reported as a generic 500 so
// internals do not leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, message)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrDeckNotFound),
		errors.Is(err, registry.ErrUserNotFound),
		errors.Is(err, slides.ErrPresentationNotFound),
		errors.Is(err, slides.ErrSlideNotFound),
		errors.Is(err, permissions.ErrFileNotFound),
		errors.Is(err, auth.ErrCredentialNotFound),
		errors.Is(err, report.ErrNoDecks):
		return http.StatusNotFound
	case errors.Is(err, slides.ErrAccessDenied),
		errors.Is(err, slides.ErrNotUploader),
		errors.Is(err, permissions.ErrNoReadPermission):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrDeckExists),
		errors.Is(err, registry.ErrUserExists),
		errors.Is(err, slides.ErrGoogleNotConnected):
		return http.StatusConflict
	case errors.Is(err, slides.ErrInvalidLink),
		errors.Is(err, slides.ErrInvalidQuery),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrInvalidState),
		errors.Is(err, registry.ErrInvalidRole),
		errors.Is(err, report.ErrInvalidLanguage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
