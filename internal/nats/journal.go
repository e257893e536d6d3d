package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/internal/dispatch"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the chat journal stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"

	publishTimeout = 5 * time.Second

	// journalQueueSize bounds the records waiting to be published.
	journalQueueSize = 4096
)

// Publisher is the subset of jetstream.JetStream the journal needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// TurnSubject returns the subject a turn is published on.
func TurnSubject(sessionID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.turn.%s", SubjectPrefix, sessionID, role)
}

// EventSubject returns the subject a resolution event is published on.
func EventSubject(sessionID string, outcome model.Outcome) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, sessionID, outcome)
}

// EnsureStream creates the journal stream if it does not exist yet.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Chat turns and resolution events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// turnRecord is the journal payload for one turn.
type turnRecord struct {
	SessionID string `json:"session_id"`
	model.Turn
}

// Journal writes every appended turn and every resolution event to JetStream.
// It is write-only: sessions are never restored from it.
//
// Records are queued and published in order by Run, so a slow or
// reconnecting server never holds up a reply.
type Journal struct {
	pub    Publisher
	queue  *dispatch.Queue
	logger *logger.Logger
}

// NewJournal creates a journal publishing through pub.
func NewJournal(pub Publisher, log *logger.Logger) *Journal {
	return &Journal{
		pub:    pub,
		queue:  dispatch.New("nats_journal", journalQueueSize, log),
		logger: log,
	}
}

// Run publishes queued records until ctx is done, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	return j.queue.Run(ctx)
}

// OnTurn queues a turn for publishing. Failures are logged and counted, never
// surfaced to the conversation.
func (j *Journal) OnTurn(_ context.Context, sessionID string, turn model.Turn) {
	rec := turnRecord{SessionID: sessionID, Turn: turn}
	subject := TurnSubject(sessionID, turn.Role)

	err := j.queue.Submit(func(ctx context.Context) {
		if _, err := j.publish(ctx, subject, rec); err != nil {
			j.logger.Warn("failed to journal turn",
				zap.String("session_id", sessionID),
				zap.String("turn_id", turn.ID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		metrics.JournalPublishFailures.Inc()
	}
}

// PublishResolution queues a resolution event. It only fails when the queue
// is full.
func (j *Journal) PublishResolution(_ context.Context, event *model.ResolutionEvent) error {
	subject := EventSubject(event.SessionID, event.Outcome)

	err := j.queue.Submit(func(ctx context.Context) {
		if _, err := j.publish(ctx, subject, event); err != nil {
			j.logger.Warn("failed to journal resolution event",
				zap.String("session_id", event.SessionID),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		metrics.JournalPublishFailures.Inc()
		return fmt.Errorf("failed to queue %s: %w", subject, err)
	}
	return nil
}

func (j *Journal) publish(ctx context.Context, subject string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.JournalPublishFailures.Inc()
		return 0, fmt.Errorf("failed to marshal %s: %w", subject, err)
	}

	// Detach from shutdown so queued records still get their full timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ack, err := j.pub.Publish(ctx, subject, data)
	if err != nil {
		metrics.JournalPublishFailures.Inc()
		return 0, fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return ack.Sequence, nil
}
