package toolkit_test

import (
	"testing"
	"time"

	"github.com/artifactflow/server/internal/toolkit"
)

func TestChecker_DefaultLevels(t *testing.T) {
	c := toolkit.NewChecker(toolkit.NewRegistry(), time.Minute)
	c.SetAgentDefaults("lead", toolkit.PermissionPublic)

	if got := c.Check("lead", "search", toolkit.PermissionPublic); got != toolkit.DecisionAllow {
		t.Fatalf("public in default set = %v, want allow", got)
	}
	if got := c.Check("lead", "notify_tool", toolkit.PermissionNotify); got != toolkit.DecisionDeny {
		t.Fatalf("notify not in default set = %v, want deny", got)
	}
}

func TestChecker_RestrictedAlwaysDeniesWithoutGrant(t *testing.T) {
	c := toolkit.NewChecker(toolkit.NewRegistry(), time.Minute)
	c.SetAgentDefaults("lead", toolkit.PermissionPublic, toolkit.PermissionNotify, toolkit.PermissionRestricted)

	if got := c.Check("lead", "delete_everything", toolkit.PermissionRestricted); got != toolkit.DecisionDeny {
		t.Fatalf("restricted = %v, want deny even when in default set", got)
	}
}

func TestChecker_ConfirmAsksThenGrantAllows(t *testing.T) {
	c := toolkit.NewChecker(toolkit.NewRegistry(), time.Minute)

	if got := c.Check("lead", "risky_tool", toolkit.PermissionConfirm); got != toolkit.DecisionAsk {
		t.Fatalf("confirm = %v, want ask", got)
	}

	req := c.CreateRequest("req1", "run1", "lead", "risky_tool", nil, toolkit.PermissionConfirm)
	if req.Decided {
		t.Fatal("new request should not be decided")
	}

	decided, err := c.Decide("req1", true)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decided.Approved {
		t.Fatal("expected Approved true")
	}

	if got := c.Check("lead", "risky_tool", toolkit.PermissionConfirm); got != toolkit.DecisionAllow {
		t.Fatalf("after grant = %v, want allow", got)
	}
	// One-shot: consumed on first use.
	if got := c.Check("lead", "risky_tool", toolkit.PermissionConfirm); got != toolkit.DecisionAsk {
		t.Fatalf("after grant consumed = %v, want ask again", got)
	}
}

func TestChecker_DecideUnknownRequest(t *testing.T) {
	c := toolkit.NewChecker(toolkit.NewRegistry(), time.Minute)
	if _, err := c.Decide("missing", true); err == nil {
		t.Fatal("expected error for unknown request id")
	}
}

func TestChecker_PruneExpired(t *testing.T) {
	c := toolkit.NewChecker(toolkit.NewRegistry(), time.Millisecond)
	c.CreateRequest("req1", "run1", "lead", "tool", nil, toolkit.PermissionConfirm)
	time.Sleep(5 * time.Millisecond)
	if n := c.PruneExpired(); n != 1 {
		t.Fatalf("PruneExpired = %d, want 1", n)
	}
}
