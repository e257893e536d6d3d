// Package session provides the in-memory conversation session: an
// append-only turn history guarded by a busy flag.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/medical-assistant/internal/model"
)

var (
	// ErrEmptyInput is returned when a turn would carry only whitespace.
	ErrEmptyInput = errors.New("input cannot be empty")
	// ErrBusy is returned when a user turn arrives while a remote reply is in flight.
	ErrBusy = errors.New("session is busy")
	// ErrNotFound is returned by Store lookups for unknown sessions.
	ErrNotFound = errors.New("session not found")
)

const subscriberBuffer = 16

// Session is one conversation. Turns are only ever appended.
type Session struct {
	id        string
	strategy  model.StrategyKind
	createdAt time.Time

	mu          sync.RWMutex
	turns       []model.Turn
	busy        bool
	subscribers map[int]chan model.Turn
	nextSub     int

	// notify is called with mu held and must not block or touch the session.
	notify func(*Session, model.Turn)

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session seeded with a single assistant greeting turn.
func New(greeting string, strategy model.StrategyKind) *Session {
	now := time.Now()
	return &Session{
		id:        uuid.Must(uuid.NewV7()).String(),
		strategy:  strategy,
		createdAt: now,
		turns: []model.Turn{
			newTurn(model.RoleAssistant, greeting, now),
		},
		subscribers: make(map[int]chan model.Turn),
		done:        make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Strategy returns the reply strategy the session was provisioned with.
func (s *Session) Strategy() model.StrategyKind {
	return s.strategy
}

// CreatedAt returns when the session started.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// AppendUser appends a user turn. It fails with ErrEmptyInput for blank text
// and ErrBusy while a reply is in flight; nothing is appended on failure.
func (s *Session) AppendUser(text string) (model.Turn, error) {
	return s.appendUser(text, false)
}

// Acquire appends a user turn and marks the session busy in one step. The
// caller must release the session with SetBusy(false).
func (s *Session) Acquire(text string) (model.Turn, error) {
	return s.appendUser(text, true)
}

func (s *Session) appendUser(text string, acquire bool) (model.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return model.Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return model.Turn{}, ErrBusy
	}
	turn := newTurn(model.RoleUser, text, time.Now())
	s.turns = append(s.turns, turn)
	if acquire {
		s.busy = true
	}
	s.publishLocked(turn)
	s.mu.Unlock()

	return turn, nil
}

// AppendAssistant appends an assistant turn.
func (s *Session) AppendAssistant(text string) (model.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return model.Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	turn := newTurn(model.RoleAssistant, text, time.Now())
	s.turns = append(s.turns, turn)
	s.publishLocked(turn)
	s.mu.Unlock()

	return turn, nil
}

// History returns a snapshot of the turns in arrival order.
func (s *Session) History() []model.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns, including the greeting.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// SetBusy toggles the in-flight request state.
func (s *Session) SetBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

// Busy reports whether a reply is in flight.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// View returns the API representation of the session.
func (s *Session) View() model.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := make([]model.Turn, len(s.turns))
	copy(turns, s.turns)
	return model.SessionView{
		ID:        s.id,
		Strategy:  s.strategy,
		Busy:      s.busy,
		CreatedAt: s.createdAt,
		Turns:     turns,
	}
}

// Subscribe returns a channel receiving every turn appended from now on, and
// a function that cancels the subscription. Turns are dropped for a
// subscriber whose buffer is full; History stays authoritative.
func (s *Session) Subscribe() (<-chan model.Turn, func()) {
	ch := make(chan model.Turn, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Done is closed when the session is removed from its store.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// publishLocked hands turn to subscribers and the store while the write lock
// is held, so every consumer sees turns in History order. Neither path blocks.
func (s *Session) publishLocked(turn model.Turn) {
	for _, ch := range s.subscribers {
		select {
		case ch <- turn:
		default:
		}
	}
	if s.notify != nil {
		s.notify(s, turn)
	}
}

func newTurn(role model.Role, content string, at time.Time) model.Turn {
	return model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}
