package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/dispatch"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

// observerQueueSize bounds the turns waiting for observers across all sessions.
const observerQueueSize = 1024

// Observer is notified after every turn appended to a session in the store.
// Notifications run on the store's dispatch goroutine (see Run), one at a
// time and in the order the turns were appended, never on the append path.
type Observer interface {
	OnTurn(ctx context.Context, sessionID string, turn model.Turn)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, sessionID string, turn model.Turn)

// OnTurn calls f.
func (f ObserverFunc) OnTurn(ctx context.Context, sessionID string, turn model.Turn) {
	f(ctx, sessionID, turn)
}

// Store keeps live sessions in memory. Sessions are lost when the process exits.
type Store struct {
	greeting  string
	observers []Observer
	queue     *dispatch.Queue
	logger    *logger.Logger

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStore creates a session store whose sessions open with greeting.
func NewStore(greeting string, log *logger.Logger, observers ...Observer) *Store {
	return &Store{
		greeting:  greeting,
		observers: observers,
		queue:     dispatch.New("session_observers", observerQueueSize, log),
		logger:    log,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new session provisioned with strategy.
func (s *Store) Create(strategy model.StrategyKind) *Session {
	sess := New(s.greeting, strategy)
	sess.notify = s.notifyObservers

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	metrics.TurnsTotal.WithLabelValues(string(strategy), string(model.RoleAssistant)).Inc()

	s.logger.Info("session created",
		zap.String("session_id", sess.ID()),
		zap.String("strategy", string(strategy)),
	)

	return sess
}

// Get retrieves a session by ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	sess.close()

	metrics.SessionsActive.Dec()
	s.logger.Info("session ended", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run delivers turns to the observers until ctx is done, then flushes the
// turns still queued.
func (s *Store) Run(ctx context.Context) error {
	return s.queue.Run(ctx)
}

func (s *Store) notifyObservers(sess *Session, turn model.Turn) {
	metrics.TurnsTotal.WithLabelValues(string(sess.Strategy()), string(turn.Role)).Inc()

	if len(s.observers) == 0 {
		return
	}

	// A full queue drops the notification; the queue counts and logs it.
	id := sess.ID()
	_ = s.queue.Submit(func(ctx context.Context) {
		for _, o := range s.observers {
			o.OnTurn(ctx, id, turn)
		}
	})
}
