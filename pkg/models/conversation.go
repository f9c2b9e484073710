package models

import "time"

// User is an authenticated principal. Never hard-deleted; Active gates login.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "admin" | "user"
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Conversation owns a forest of Messages and exactly one ArtifactSession
// sharing its id.
type Conversation struct {
	ID               string    `json:"id"`
	OwnerUserID      string    `json:"owner_user_id,omitempty"`
	Title            string    `json:"title,omitempty"`
	ActiveBranchID   string    `json:"active_branch_message_id,omitempty"`
	ActiveRunID      string    `json:"-"` // non-empty while a run on this conversation hasn't emitted a terminal event
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Message is one node in a conversation's branching forest.
type Message struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	ParentID           string    `json:"parent_id,omitempty"`
	UserContent        string    `json:"user_content"`
	RunID              string    `json:"run_id"`
	AgentFinalResponse string    `json:"agent_final_response,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// HistoryTurn is one flattened entry of a conversation transcript suitable
// for LLM context: {role, content}.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}
