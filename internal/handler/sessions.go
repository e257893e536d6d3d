package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/middleware"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/internal/resolver"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	store           *session.Store
	resolver        *resolver.Resolver
	defaultStrategy model.StrategyKind
	logger          *logger.Logger
}

// NewSessionHandler creates a new session handler. Sessions created without
// an explicit strategy use defaultStrategy.
func NewSessionHandler(store *session.Store, res *resolver.Resolver, defaultStrategy model.StrategyKind, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		store:           store,
		resolver:        res,
		defaultStrategy: defaultStrategy,
		logger:          log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strategy := h.defaultStrategy
	if req.Strategy != "" {
		kind, ok := model.ParseStrategyKind(req.Strategy)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown strategy")
			return
		}
		strategy = kind
	}
	if !h.resolver.Supports(strategy) {
		writeError(w, http.StatusUnprocessableEntity, "strategy not available: "+string(strategy))
		return
	}

	sess := h.store.Create(strategy)
	writeJSON(w, http.StatusCreated, sess.View())
}

// Get handles GET /api/v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// Turns handles GET /api/v1/sessions/{sessionID}/turns
func (h *SessionHandler) Turns(w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &model.ListTurnsResponse{
		Turns: sess.History(),
		Busy:  sess.Busy(),
	})
}

// Delete handles DELETE /api/v1/sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookupSession resolves the {sessionID} URL parameter, writing the error
// response itself when it cannot.
func lookupSession(w http.ResponseWriter, r *http.Request, store *session.Store) (*session.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	sess, err := store.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}
