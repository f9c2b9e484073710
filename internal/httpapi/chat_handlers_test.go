package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/pkg/models"
)

func TestOwnerID_RegularUserScopedToSelf(t *testing.T) {
	user := &models.User{ID: "usr-1", Username: "alice", Role: models.RoleUser}
	req := httptest.NewRequest("GET", "/api/v1/chat", nil)
	req = req.WithContext(auth.WithUser(req.Context(), user))

	if got := ownerID(req); got != "usr-1" {
		t.Fatalf("ownerID = %q, want %q", got, "usr-1")
	}
}

func TestOwnerID_AdminSeesEveryConversation(t *testing.T) {
	admin := &models.User{ID: "usr-admin", Username: "root", Role: models.RoleAdmin}
	req := httptest.NewRequest("GET", "/api/v1/chat", nil)
	req = req.WithContext(auth.WithUser(req.Context(), admin))

	if got := ownerID(req); got != "" {
		t.Fatalf("ownerID = %q, want empty string (no filter) for an admin caller", got)
	}
}

func TestOwnerID_NoUserInContextReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/chat", nil)

	if got := ownerID(req); got != "" {
		t.Fatalf("ownerID = %q, want empty string when no user is bound to context", got)
	}
}
