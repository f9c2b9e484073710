// Package conversation implements the Conversation Store component
// (spec.md §4.4): a tree of user messages + agent responses with an
// active-branch pointer.
//
// Grounded on internal/sessions/branch_store.go's interface shape, scaled
// down to spec.md's single-active-branch model (no merge/archive/compare —
// those are teacher features with no corresponding spec.md operation; see
// DESIGN.md).
package conversation

import (
	"context"

	"github.com/artifactflow/server/pkg/models"
)

// Store is the Conversation Store's contract.
type Store interface {
	Create(ctx context.Context, id, ownerUserID, title string) (*models.Conversation, error)
	EnsureExists(ctx context.Context, id string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Conversation, error)
	Delete(ctx context.Context, id string) error

	// TryBeginRun marks the conversation as having an in-flight run,
	// failing if one is already active (DESIGN.md Open Question (a)).
	TryBeginRun(ctx context.Context, conversationID, runID string) error
	EndRun(ctx context.Context, conversationID, runID string) error

	AddMessage(ctx context.Context, convID, msgID, content, runID, parentID string) (*models.Message, error)
	UpdateResponse(ctx context.Context, msgID, text string) error
	GetMessage(ctx context.Context, msgID string) (*models.Message, error)

	// Path walks parent_id links from toMsgID (or the conversation's active
	// branch if toMsgID is empty) up to the root, returned oldest-first.
	Path(ctx context.Context, convID, toMsgID string) ([]models.Message, error)

	Children(ctx context.Context, msgID string) ([]models.Message, error)

	FormatHistory(ctx context.Context, convID, toMsgID string) ([]models.HistoryTurn, error)
}
