package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/artifactflow/server/internal/streambuf"
	"github.com/artifactflow/server/pkg/models"
)

// StreamHandlers implements the SSE run stream (spec.md §6/§8): one event
// per line pair, `event: <type>\ndata: <json>\n\n`, with heartbeat comments
// keeping the connection warm and the connection closing after the single
// terminal event.
type StreamHandlers struct {
	Streams       *streambuf.Manager
	PingInterval  time.Duration
	Logger        *slog.Logger
}

// GetStream implements GET /api/v1/stream/{run_id}.
func (h *StreamHandlers) GetStream(w http.ResponseWriter, r *http.Request, runID string) {
	events, err := h.Streams.Consume(r.Context(), runID, h.PingInterval)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.Logger, fmt.Errorf("%w: streaming unsupported", models.ErrInternal))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == models.EventHeartbeat {
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				if h.Logger != nil {
					h.Logger.Debug("sse write failed, client likely disconnected", "run_id", runID, "error", err)
				}
				return
			}
			flusher.Flush()
			if ev.IsTerminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev models.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
