// Package execctl implements the Execution Controller component
// (spec.md §4.9): it orchestrates one logical operation — "new message" or
// "resume after permission" — translating between the HTTP boundary and
// the graph, allocating IDs, building history, and persisting results.
//
// Grounded on original_source/src/core/controller.py's
// _execute_new_message/_resume_from_permission step sequence and id
// prefixes; see DESIGN.md for the batch-vs-streaming interrupt-detection
// collapse this makes relative to the original.
package execctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/artifactflow/server/internal/artifacts"
	"github.com/artifactflow/server/internal/conversation"
	"github.com/artifactflow/server/internal/metrics"
	"github.com/artifactflow/server/internal/orchestrator"
	"github.com/artifactflow/server/internal/streambuf"
	"github.com/artifactflow/server/internal/taskmgr"
	"github.com/artifactflow/server/pkg/models"
)

// Controller wires the stores, graph, stream buffers, and task manager
// into the two operations the HTTP layer drives (spec.md §6): new message
// and resume.
type Controller struct {
	Conversations conversation.Store
	Artifacts     artifacts.Store
	Streams       *streambuf.Manager
	Graph         *orchestrator.Graph
	Tasks         *taskmgr.Manager
	Logger        *slog.Logger
	Metrics       *metrics.Metrics

	// StreamTimeout is the per-run hard cap (spec.md §5, default 300s).
	StreamTimeout time.Duration

	// Debug controls whether internal error detail reaches the client
	// (spec.md §6 "In non-debug mode, error.error is replaced with
	// 'Internal server error'").
	Debug bool

	mu          sync.Mutex
	pendingRuns map[string]*models.RunState
}

func New(conversations conversation.Store, artifactStore artifacts.Store, streams *streambuf.Manager, graph *orchestrator.Graph, tasks *taskmgr.Manager, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Conversations: conversations,
		Artifacts:     artifactStore,
		Streams:       streams,
		Graph:         graph,
		Tasks:         tasks,
		Logger:        logger.With("component", "execctl"),
		StreamTimeout: 300 * time.Second,
		pendingRuns:   make(map[string]*models.RunState),
	}
}

// WithMetrics attaches a metrics sink; every run/sink event after this call
// is reflected in the corresponding Prometheus series. Optional.
func (c *Controller) WithMetrics(mx *metrics.Metrics) *Controller {
	c.Metrics = mx
	return c
}

// NewMessageResult is returned synchronously from NewMessage; the graph
// execution itself continues in the background under the task manager.
type NewMessageResult struct {
	ConversationID string
	MessageID      string
	RunID          string
}

// NewMessage implements spec.md §4.9's new_message operation.
func (c *Controller) NewMessage(ctx context.Context, content, conversationID, parentID string) (*NewMessageResult, error) {
	convID := conversationID
	creating := convID == ""
	if creating {
		convID = models.NewID("thd")
	}

	conv, err := c.Conversations.EnsureExists(ctx, convID)
	if err != nil {
		return nil, err
	}

	if parentID == "" {
		parentID = conv.ActiveBranchID
	}

	history, err := c.Conversations.FormatHistory(ctx, convID, parentID)
	if err != nil {
		return nil, err
	}
	history = conversation.Compress(history)

	msgID := models.NewID("msg")
	runID := models.NewID("run")

	// Open Question (a): reject a second concurrent run on one
	// conversation rather than interleave or silently serialize.
	if err := c.Conversations.TryBeginRun(ctx, convID, runID); err != nil {
		return nil, err
	}

	if err := c.Artifacts.EnsureSession(ctx, convID); err != nil {
		c.Conversations.EndRun(ctx, convID, runID)
		return nil, err
	}
	if err := c.Artifacts.ClearTemporary(ctx, convID, artifacts.DefaultTemporaryIDs); err != nil {
		c.Conversations.EndRun(ctx, convID, runID)
		return nil, err
	}

	if _, err := c.Conversations.AddMessage(ctx, convID, msgID, content, runID, parentID); err != nil {
		c.Conversations.EndRun(ctx, convID, runID)
		return nil, err
	}

	if err := c.Streams.Create(runID); err != nil {
		c.Conversations.EndRun(ctx, convID, runID)
		return nil, err
	}

	sink := newBufferSink(c.Streams, runID, c.Metrics)
	sink.push(models.EventMetadata, models.MetadataPayload{ConversationID: convID, MessageID: msgID, RunID: runID})

	state := &models.RunState{
		RunID:          runID,
		ConversationID: convID,
		MessageID:      msgID,
		CurrentTask:    content,
		History:        history,
		Phase:          models.PhaseLeadExecuting,
		CurrentAgent:   c.Graph.Lead.Agent.Name,
	}

	if err := c.Tasks.Submit(context.WithoutCancel(ctx), runID, func(taskCtx context.Context) {
		c.run(taskCtx, state, sink)
	}); err != nil {
		c.Streams.Close(runID)
		c.Conversations.EndRun(ctx, convID, runID)
		return nil, err
	}

	return &NewMessageResult{ConversationID: convID, MessageID: msgID, RunID: runID}, nil
}

// ResumeResult is returned synchronously from ResumeApproval.
type ResumeResult struct {
	RunID string
}

// ResumeApproval implements spec.md §4.9's resume operation.
func (c *Controller) ResumeApproval(ctx context.Context, conversationID, messageID, runID string, approved bool) (*ResumeResult, error) {
	msg, err := c.Conversations.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID || msg.RunID != runID {
		return nil, fmt.Errorf("%w: message %q does not belong to conversation %q / run %q", models.ErrValidation, messageID, conversationID, runID)
	}

	state := c.takePendingRun(runID)
	if state == nil {
		return nil, fmt.Errorf("%w: no suspended run %q", models.ErrNotFound, runID)
	}

	if err := c.Conversations.TryBeginRun(ctx, conversationID, runID); err != nil {
		c.putPendingRun(runID, state)
		return nil, err
	}
	if err := c.Streams.Create(runID); err != nil {
		c.Conversations.EndRun(ctx, conversationID, runID)
		c.putPendingRun(runID, state)
		return nil, err
	}

	sink := newBufferSink(c.Streams, runID, c.Metrics)

	if err := c.Tasks.Submit(context.WithoutCancel(ctx), runID, func(taskCtx context.Context) {
		taskCtx = models.WithSessionID(taskCtx, state.ConversationID)
		start := time.Now()
		err := c.Graph.Resume(taskCtx, state, approved, sink)
		state.Metrics.DurationMS += time.Since(start).Milliseconds()
		c.finish(taskCtx, state, sink, err)
	}); err != nil {
		c.Streams.Close(runID)
		c.Conversations.EndRun(ctx, conversationID, runID)
		return nil, err
	}

	return &ResumeResult{RunID: runID}, nil
}

func (c *Controller) run(ctx context.Context, state *models.RunState, sink *bufferSink) {
	runCtx := models.WithSessionID(ctx, state.ConversationID)
	if c.StreamTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.StreamTimeout)
		defer cancel()
	}

	c.Metrics.RunStarted()
	start := time.Now()
	err := c.Graph.Run(runCtx, state, sink)
	state.Metrics.DurationMS = time.Since(start).Milliseconds()
	c.finish(ctx, state, sink, err)
}

// finish persists the run's outcome and emits exactly one terminal event
// (spec.md §8 "exactly one terminal event... and it is the last event on
// the stream"), then ends the conversation's active-run marker — the
// interrupted case's `complete{interrupted:true}` is itself terminal for
// this stream, even though the RunState is kept alive for a later resume.
func (c *Controller) finish(ctx context.Context, state *models.RunState, sink *bufferSink, runErr error) {
	defer c.Conversations.EndRun(ctx, state.ConversationID, state.RunID)

	durationSeconds := float64(state.Metrics.DurationMS) / 1000

	if runErr != nil {
		sink.push(models.EventError, models.ErrorPayload{Error: c.errorMessage(runErr)})
		c.Metrics.RunCompleted("error", durationSeconds)
		return
	}

	switch state.Phase {
	case models.PhaseWaitingPermission:
		c.putPendingRun(state.RunID, state)
		sink.push(models.EventComplete, models.CompletePayload{
			Interrupted:      true,
			ExecutionMetrics: state.Metrics,
			InterruptType:    "permission",
			InterruptData:    state.PendingPerm,
		})
		c.Metrics.RunCompleted("interrupted", durationSeconds)
	case models.PhaseCompleted:
		finalContent := state.Memory(c.Graph.Lead.Agent.Name).FinalContent
		if err := c.Conversations.UpdateResponse(ctx, state.MessageID, finalContent); err != nil {
			c.Logger.Error("failed to persist final response", "message_id", state.MessageID, "error", err)
		}
		sink.push(models.EventComplete, models.CompletePayload{
			Interrupted:      false,
			Response:         finalContent,
			ExecutionMetrics: state.Metrics,
		})
		c.Metrics.RunCompleted("completed", durationSeconds)
	default:
		sink.push(models.EventError, models.ErrorPayload{Error: c.errorMessage(fmt.Errorf("%w: run ended in unexpected phase %q", models.ErrInternal, state.Phase))})
		c.Metrics.RunCompleted("error", durationSeconds)
	}
}

func (c *Controller) errorMessage(err error) string {
	if c.Debug {
		return err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "run exceeded the stream timeout"
	}
	return "Internal server error"
}

func (c *Controller) takePendingRun(runID string) *models.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.pendingRuns[runID]
	if !ok {
		return nil
	}
	delete(c.pendingRuns, runID)
	return state
}

func (c *Controller) putPendingRun(runID string, state *models.RunState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingRuns[runID] = state
}
