package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/internal/conversation"
	"github.com/artifactflow/server/internal/execctl"
	"github.com/artifactflow/server/pkg/models"
)

// ChatHandlers implements the conversation/message endpoints (spec.md §6),
// sitting directly on top of the Execution Controller.
type ChatHandlers struct {
	Controller    *execctl.Controller
	Conversations conversation.Store
	Logger        *slog.Logger
}

type newMessageRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
	ParentID       string `json:"parent_message_id"`
}

type newMessageResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	RunID          string `json:"run_id"`
	StreamURL      string `json:"stream_url"`
}

// PostMessage implements POST /api/v1/chat.
func (h *ChatHandlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req newMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	result, err := h.Controller.NewMessage(r.Context(), req.Content, req.ConversationID, req.ParentID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, newMessageResponse{
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
		RunID:          result.RunID,
		StreamURL:      streamURL(result.RunID),
	})
}

func streamURL(runID string) string {
	return "/api/v1/stream/" + runID
}

type resumeRequest struct {
	MessageID string `json:"message_id"`
	RunID     string `json:"run_id"`
	Approved  bool   `json:"approved"`
}

type resumeResponse struct {
	StreamURL string `json:"stream_url"`
}

// PostResume implements POST /api/v1/chat/{id}/resume.
func (h *ChatHandlers) PostResume(w http.ResponseWriter, r *http.Request, conversationID string) {
	var req resumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.Controller.ResumeApproval(r.Context(), conversationID, req.MessageID, req.RunID, req.Approved)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resumeResponse{StreamURL: streamURL(result.RunID)})
}

// ListConversations implements GET /api/v1/chat.
func (h *ChatHandlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	convs, err := h.Conversations.List(r.Context(), ownerID(r), limit, offset)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// GetConversation implements GET /api/v1/chat/{id}: the conversation plus
// its message path down the active branch (or a requested branch via
// ?message_id=).
func (h *ChatHandlers) GetConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	conv, err := h.Conversations.Get(r.Context(), conversationID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	toMsgID := r.URL.Query().Get("message_id")
	path, err := h.Conversations.Path(r.Context(), conversationID, toMsgID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": path})
}

// DeleteConversation implements DELETE /api/v1/chat/{id}.
func (h *ChatHandlers) DeleteConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	if err := h.Conversations.Delete(r.Context(), conversationID); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerID returns the id to filter list_conversations by, per DESIGN.md's
// resolution of spec.md §9 Open Question (b): every caller is scoped to
// their own conversations except admins, who see everything, matching
// Conversations.List's convention that an empty ownerUserID means "no
// filter".
func ownerID(r *http.Request) string {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return ""
	}
	if user.Role == models.RoleAdmin {
		return ""
	}
	return user.ID
}
