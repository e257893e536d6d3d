package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

// DefaultHeartbeatInterval is how often idle streams receive a heartbeat.
const DefaultHeartbeatInterval = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	store     *session.Store
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(store *session.Store, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamHandler{
		store:     store,
		heartbeat: heartbeat,
		logger:    log,
	}
}

// ReplayCompleteEvent marks the end of the history replay.
type ReplayCompleteEvent struct {
	TurnCount int  `json:"turn_count"`
	Busy      bool `json:"busy"`
}

// Stream handles GET /api/v1/sessions/{sessionID}/stream. It replays the
// history and then pushes every new turn until the client leaves or the
// session is deleted.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := lookupSession(w, r, h.store)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("failed to clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.With(zap.String("session_id", sess.ID()))

	// Subscribe before the snapshot so no turn falls between the two.
	live, cancel := sess.Subscribe()
	defer cancel()

	history := sess.History()
	seen := make(map[string]struct{}, len(history))
	for _, turn := range history {
		if err := sendSSEEvent(w, flusher, "turn", turn); err != nil {
			return
		}
		seen[turn.ID] = struct{}{}
	}
	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		TurnCount: len(history),
		Busy:      sess.Busy(),
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case <-sess.Done():
			sendSSEEvent(w, flusher, "session_ended", &model.ErrorEvent{
				Code:    "session_ended",
				Message: "session was deleted",
			})
			return

		case turn, ok := <-live:
			if !ok {
				return
			}
			if _, dup := seen[turn.ID]; dup {
				continue
			}
			if err := sendSSEEvent(w, flusher, "turn", turn); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}
