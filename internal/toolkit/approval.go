package toolkit

import (
	"fmt"
	"sync"
	"time"

	"github.com/artifactflow/server/pkg/models"
)

// Decision is the outcome of a permission check.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionDeny   Decision = "deny"
	DecisionAsk    Decision = "ask" // suspend into a permission interrupt
)

// ApprovalRequest is a pending confirm-tier tool call awaiting a user
// decision. Grounded on internal/agent/approval.go's ApprovalRequest and
// original_source/src/tools/permissions.py's PermissionRequest.
type ApprovalRequest struct {
	ID         string
	RunID      string
	AgentID    string
	ToolName   string
	Params     map[string]any
	Permission Permission
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Decided    bool
	Approved   bool
	DecidedAt  time.Time
}

// grant is a one-shot special permission for (agent, tool), created when a
// pending request is approved (SPEC_FULL.md §12). Consumed on first use
// unless Durable.
type grant struct {
	expiresAt time.Time
	durable   bool
	used      bool
}

// Checker implements the permission gate: per-agent default permission-
// level sets, checked against each tool's single permission tier, with
// special grants overriding the default set.
//
// This is the Go-idiom reuse of internal/agent/approval.go's
// mutex-guarded-maps shape, adapted to the SET-of-levels model from
// original_source/src/tools/permissions.py instead of allow/deny lists.
type Checker struct {
	mu sync.Mutex

	registry *Registry

	// defaultLevels maps agent name -> set of permission tiers that agent
	// may execute without triggering an approval interrupt.
	defaultLevels map[string]map[Permission]bool

	// grants maps agentID -> toolName -> grant.
	grants map[string]map[string]*grant

	pending map[string]*ApprovalRequest // by ApprovalRequest.ID

	requestTTL time.Duration
}

func NewChecker(registry *Registry, requestTTL time.Duration) *Checker {
	if requestTTL <= 0 {
		requestTTL = 5 * time.Minute
	}
	return &Checker{
		registry:      registry,
		defaultLevels: make(map[string]map[Permission]bool),
		grants:        make(map[string]map[string]*grant),
		pending:       make(map[string]*ApprovalRequest),
		requestTTL:    requestTTL,
	}
}

// SetAgentDefaults configures which permission tiers an agent may execute
// without an approval interrupt. Typical lead/subagent config grants
// public+notify; restricted and confirm still gate per-tool.
func (c *Checker) SetAgentDefaults(agentID string, levels ...Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[Permission]bool, len(levels))
	for _, l := range levels {
		set[l] = true
	}
	c.defaultLevels[agentID] = set
}

// Check implements the precedence cascade (highest to lowest):
//  1. an unexpired, unused grant for (agentID, toolName) -> allow
//  2. permission == restricted and no grant -> deny
//  3. permission == confirm -> ask (unless covered by a grant, handled above)
//  4. permission in the agent's default set -> allow
//  5. otherwise -> deny
func (c *Checker) Check(agentID, toolName string, permission Permission) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g := c.grants[agentID][toolName]; g != nil && !g.used && (g.durable || time.Now().Before(g.expiresAt)) {
		if !g.durable {
			g.used = true
		}
		return DecisionAllow
	}

	switch permission {
	case PermissionRestricted:
		return DecisionDeny
	case PermissionConfirm:
		return DecisionAsk
	case PermissionPublic, PermissionNotify:
		if set, ok := c.defaultLevels[agentID]; ok {
			if set[permission] {
				return DecisionAllow
			}
			return DecisionDeny
		}
		// No explicit default configured: public/notify execute immediately,
		// matching spec.md §4.1's "public executes immediately... notify
		// executes immediately but surfaces a user-visible event".
		return DecisionAllow
	default:
		return DecisionDeny
	}
}

// CreateRequest records a pending approval for a confirm-tier call.
func (c *Checker) CreateRequest(id, runID, agentID, toolName string, params map[string]any, permission Permission) *ApprovalRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := &ApprovalRequest{
		ID:         id,
		RunID:      runID,
		AgentID:    agentID,
		ToolName:   toolName,
		Params:     params,
		Permission: permission,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(c.requestTTL),
	}
	c.pending[id] = req
	return req
}

// Decide resolves a pending request. Approving creates a one-shot grant so
// the resumed tool execution (spec.md §4.8's permission-confirmation node)
// passes Check without re-prompting. Per spec.md §9 Open Question (c), the
// grant is always one-shot; Decide never creates a durable grant.
func (c *Checker) Decide(requestID string, approved bool) (*ApprovalRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: approval request %q", models.ErrNotFound, requestID)
	}
	req.Decided = true
	req.Approved = approved
	req.DecidedAt = time.Now()
	delete(c.pending, requestID)

	if approved {
		if c.grants[req.AgentID] == nil {
			c.grants[req.AgentID] = make(map[string]*grant)
		}
		c.grants[req.AgentID][req.ToolName] = &grant{expiresAt: time.Now().Add(c.requestTTL)}
	}

	return req, nil
}

// PruneExpired drops pending requests whose TTL has elapsed.
func (c *Checker) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := time.Now()
	for id, req := range c.pending {
		if now.After(req.ExpiresAt) {
			delete(c.pending, id)
			n++
		}
	}
	return n
}
