package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/middleware"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/internal/resolver"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	store    *session.Store
	resolver *resolver.Resolver
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(store *session.Store, res *resolver.Resolver, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		store:    store,
		resolver: res,
		logger:   log,
	}
}

// Send handles POST /api/v1/sessions/{sessionID}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r, h.store)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A client that hangs up still gets its turn pair recorded.
	ctx := context.WithoutCancel(r.Context())

	reply, err := h.resolver.Resolve(ctx, sess, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		h.logger.WithSession(middleware.GetCorrelationID(r.Context()), sess.ID()).
			Error("failed to resolve message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve message")
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Reply: reply})
}
