package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/relay"
	"github.com/ashveil/jobscout/internal/task"
)

// streamEvents turns a relay subscription into a server-sent event stream.
// The loop alternates a bounded poll with a disconnect check, so the request
// goroutine is never blocked longer than the poll interval. The subscription
// is released on every exit path.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	sub, err := h.relay.Subscribe(r.Context(), taskID)
	if err != nil {
		h.logger.Error("subscribe failed", zap.String("task", taskID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "event stream unavailable"})
		return
	}
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
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
		default:
		}

		ev, err := sub.Next(ctx, h.pollInterval)
		switch {
		case err == nil:
			writeFrame(w, flusher, ev)
		case errors.Is(err, relay.ErrNoEvent):
			// Nothing published within the poll window.
		case errors.Is(err, relay.ErrMalformedEvent):
			// One bad payload must not tear down the stream.
			writeFrame(w, flusher, &task.Event{
				Type: task.EventStreamError,
				Data: map[string]any{"error": err.Error()},
			})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		default:
			h.logger.Error("event stream failed", zap.String("task", taskID), zap.Error(err))
			return
		}
	}
}

// writeFrame encodes one event as a discrete SSE frame and flushes it.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev *task.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// relayAdapter narrows *relay.Relay to the Relay interface the handler uses.
type relayAdapter struct {
	r *relay.Relay
}

// NewRelaySource wraps a concrete relay for handler consumption.
func NewRelaySource(r *relay.Relay) Relay {
	return relayAdapter{r: r}
}

func (a relayAdapter) Subscribe(ctx context.Context, taskID string) (EventSource, error) {
	sub, err := a.r.Subscribe(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
