// Package httpapi implements ArtifactFlow's REST+SSE surface (spec.md §6):
// a stdlib http.ServeMux wiring auth, chat, stream, and artifact handlers
// onto the Execution Controller and stores.
//
// Grounded on internal/gateway/http_server.go's ServeMux + healthz +
// promhttp pattern and the error-taxonomy-to-status mapping spec.md §7
// names.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/artifactflow/server/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the spec.md §7 error taxonomy onto an HTTP status and
// writes a {"error": "..."} body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg := classifyError(err)
	if status >= 500 && logger != nil {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, models.ErrAmbiguousMatch):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("malformed request body")
	}
	return nil
}
