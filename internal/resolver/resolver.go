// Package resolver produces the assistant turn for each user turn using the
// reply strategy a session was provisioned with.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

// ErrUnknownStrategy is returned for a session whose strategy is not configured.
var ErrUnknownStrategy = errors.New("reply strategy not configured")

// EventPublisher receives one event per resolved user turn.
type EventPublisher interface {
	PublishResolution(ctx context.Context, event *model.ResolutionEvent) error
}

// Resolver is the single entry point turning user text into an assistant turn.
type Resolver struct {
	strategies map[model.StrategyKind]Strategy
	events     EventPublisher
	logger     *logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategy registers a strategy under its kind.
func WithStrategy(s Strategy) Option {
	return func(r *Resolver) {
		r.strategies[s.Kind()] = s
	}
}

// WithEvents publishes a ResolutionEvent after every reply.
func WithEvents(p EventPublisher) Option {
	return func(r *Resolver) {
		r.events = p
	}
}

// New creates a resolver.
func New(log *logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		strategies: make(map[model.StrategyKind]Strategy),
		logger:     log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports reports whether sessions provisioned with kind can be resolved.
func (r *Resolver) Supports(kind model.StrategyKind) bool {
	_, ok := r.strategies[kind]
	return ok
}

// Resolve appends raw as a user turn, produces the reply and appends it as an
// assistant turn, which is returned.
//
// Only session.ErrEmptyInput, session.ErrBusy and ErrUnknownStrategy are
// returned, and in those cases nothing is appended. Once the user turn is
// accepted exactly one assistant turn follows it, whatever the strategy does.
// Exclusive strategies hold the session busy until that turn is appended.
func (r *Resolver) Resolve(ctx context.Context, sess *session.Session, raw string) (model.Turn, error) {
	strategy, ok := r.strategies[sess.Strategy()]
	if !ok {
		return model.Turn{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, sess.Strategy())
	}

	var err error
	if strategy.Exclusive() {
		_, err = sess.Acquire(raw)
	} else {
		_, err = sess.AppendUser(raw)
	}
	if err != nil {
		metrics.RejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return model.Turn{}, err
	}
	if strategy.Exclusive() {
		defer sess.SetBusy(false)
	}

	start := time.Now()
	reply := r.reply(ctx, strategy, sess, raw)

	turn, err := sess.AppendAssistant(reply.Text)
	if err != nil {
		// reply guarantees non-blank text; keep the pairing regardless
		reply = Reply{Text: EmergencyFallback, Outcome: model.OutcomeFallback, Reason: err.Error()}
		turn, _ = sess.AppendAssistant(reply.Text)
	}

	metrics.ResolutionsTotal.WithLabelValues(string(strategy.Kind()), string(reply.Outcome)).Inc()
	r.logger.Info("reply resolved",
		zap.String("session_id", sess.ID()),
		zap.String("strategy", string(strategy.Kind())),
		zap.String("outcome", string(reply.Outcome)),
		zap.String("intent", reply.IntentID),
		zap.Duration("duration", time.Since(start)),
	)
	r.publish(ctx, sess, strategy, reply)

	return turn, nil
}

func (r *Resolver) reply(ctx context.Context, strategy Strategy, sess *session.Session, raw string) (rep Reply) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reply strategy panicked",
				zap.String("session_id", sess.ID()),
				zap.Any("panic", p),
			)
			rep = Reply{Text: EmergencyFallback, Outcome: model.OutcomeFallback, Reason: "panic"}
		}
	}()

	rep = strategy.Reply(ctx, sess, raw)
	if strings.TrimSpace(rep.Text) == "" {
		rep = Reply{Text: EmergencyFallback, Outcome: model.OutcomeFallback, Reason: "empty reply"}
	}
	return rep
}

func (r *Resolver) publish(ctx context.Context, sess *session.Session, strategy Strategy, reply Reply) {
	if r.events == nil {
		return
	}

	event := &model.ResolutionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sess.ID(),
		Strategy:  strategy.Kind(),
		Outcome:   reply.Outcome,
		IntentID:  reply.IntentID,
		Reason:    reply.Reason,
		CreatedAt: time.Now(),
	}
	if err := r.events.PublishResolution(ctx, event); err != nil {
		r.logger.Warn("failed to publish resolution event",
			zap.String("session_id", sess.ID()),
			zap.Error(err),
		)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, session.ErrBusy):
		return "busy"
	default:
		return "other"
	}
}
