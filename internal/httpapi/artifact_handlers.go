package httpapi

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/artifactflow/server/internal/artifacts"
)

// ArtifactHandlers implements the read-only artifact endpoints (spec.md
// §6). Artifacts are mutated only by agent tool calls, never directly by
// the HTTP client.
type ArtifactHandlers struct {
	Artifacts artifacts.Store
	Logger    *slog.Logger
}

// ListArtifacts implements GET /api/v1/artifacts/{session_id}.
func (h *ArtifactHandlers) ListArtifacts(w http.ResponseWriter, r *http.Request, sessionID string) {
	contentType := r.URL.Query().Get("content_type")
	list, err := h.Artifacts.List(r.Context(), sessionID, contentType)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": list})
}

// GetArtifact implements GET /api/v1/artifacts/{session_id}/{id}, optionally
// pinned to ?version=N.
func (h *ArtifactHandlers) GetArtifact(w http.ResponseWriter, r *http.Request, sessionID, id string) {
	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version must be an integer"})
			return
		}
		version = &n
	}

	artifact, err := h.Artifacts.Read(r.Context(), sessionID, id, version)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// ListVersions implements GET /api/v1/artifacts/{session_id}/{id}/versions.
func (h *ArtifactHandlers) ListVersions(w http.ResponseWriter, r *http.Request, sessionID, id string) {
	versions, err := h.Artifacts.ListVersions(r.Context(), sessionID, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// GetVersion implements GET /api/v1/artifacts/{session_id}/{id}/versions/{n}.
func (h *ArtifactHandlers) GetVersion(w http.ResponseWriter, r *http.Request, sessionID, id string, version int) {
	v, err := h.Artifacts.GetVersion(r.Context(), sessionID, id, version)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
