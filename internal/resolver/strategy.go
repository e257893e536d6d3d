package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/medical-assistant/internal/intent"
	"github.com/capitalize-ai/medical-assistant/internal/llm"
	"github.com/capitalize-ai/medical-assistant/internal/model"
	"github.com/capitalize-ai/medical-assistant/internal/session"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

const (
	// GenericFallback answers utterances that match no intent.
	GenericFallback = "I'm not sure I understood that. I can help with symptoms, " +
		"appointments, emergency information, and general health info. " +
		"Could you rephrase your question?"

	// EmergencyFallback answers when a remote reply could not be produced.
	EmergencyFallback = "I'm having trouble responding right now. If this is a " +
		"medical emergency, please call your local emergency number (such as 911) " +
		"or go to the nearest emergency room immediately."

	// DefaultSystemPrompt frames every remote completion.
	DefaultSystemPrompt = "You are a helpful medical assistant for a clinic. Give " +
		"clear, general health information in a friendly tone. Do not diagnose. " +
		"Advise users to consult a doctor, and to contact emergency services " +
		"immediately for urgent symptoms."
)

// Reply is a strategy's answer to one user turn.
type Reply struct {
	Text     string
	Outcome  model.Outcome
	IntentID string
	Reason   string
}

// Strategy produces assistant replies. A session is provisioned with exactly
// one strategy for its lifetime.
type Strategy interface {
	Kind() model.StrategyKind

	// Exclusive reports whether the session must be held busy while Reply runs.
	Exclusive() bool

	// Reply answers text, which is already appended to sess as a user turn.
	Reply(ctx context.Context, sess *session.Session, text string) Reply
}

// RuleBased answers from the intent table. It never blocks and never fails.
type RuleBased struct {
	tables intent.Source
}

// NewRuleBased creates a rule-based strategy. Each reply reads the table
// current at that moment, so a reloaded table applies to the next turn.
func NewRuleBased(tables intent.Source) *RuleBased {
	return &RuleBased{tables: tables}
}

// Kind returns StrategyRuleBased.
func (s *RuleBased) Kind() model.StrategyKind {
	return model.StrategyRuleBased
}

// Exclusive returns false.
func (s *RuleBased) Exclusive() bool {
	return false
}

// Reply returns the canned response of the first matching intent, or the
// generic fallback.
func (s *RuleBased) Reply(_ context.Context, _ *session.Session, text string) Reply {
	in, ok := s.tables.Current().Match(intent.Normalize(text))
	if !ok {
		return Reply{Text: GenericFallback, Outcome: model.OutcomeNoMatch}
	}

	metrics.IntentMatchesTotal.WithLabelValues(in.ID).Inc()
	return Reply{Text: in.Response, Outcome: model.OutcomeIntent, IntentID: in.ID}
}

// Completer is the remote completion boundary.
type Completer interface {
	Send(ctx context.Context, req *llm.CompletionRequest) llm.Result
	Provider() string
}

// PromptConfig shapes the completion requests sent by Remote.
type PromptConfig struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int

	// MaxHistoryTurns caps how many recent turns are forwarded; 0 forwards all.
	MaxHistoryTurns int
}

// Remote answers through a completion service.
type Remote struct {
	completer Completer
	prompt    PromptConfig
	tracer    trace.Tracer
}

// NewRemote creates a remote strategy.
func NewRemote(completer Completer, prompt PromptConfig) *Remote {
	if prompt.SystemPrompt == "" {
		prompt.SystemPrompt = DefaultSystemPrompt
	}
	return &Remote{
		completer: completer,
		prompt:    prompt,
		tracer:    otel.Tracer("github.com/capitalize-ai/medical-assistant/internal/resolver"),
	}
}

// Kind returns StrategyRemote.
func (s *Remote) Kind() model.StrategyKind {
	return model.StrategyRemote
}

// Exclusive returns true: one completion call per session at a time.
func (s *Remote) Exclusive() bool {
	return true
}

// Reply sends the session history to the completion service. Failures are
// answered with EmergencyFallback.
func (s *Remote) Reply(ctx context.Context, sess *session.Session, _ string) Reply {
	req := BuildRequest(s.prompt, sess.History())

	ctx, span := s.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", s.completer.Provider()),
		attribute.String("chat.session_id", sess.ID()),
		attribute.Int("chat.messages", len(req.Messages)),
	))
	defer span.End()

	res := s.completer.Send(ctx, req)
	span.SetAttributes(attribute.String("llm.outcome", res.Outcome.String()))

	switch res.Outcome {
	case llm.OutcomeSuccess:
		return Reply{Text: res.Text, Outcome: model.OutcomeSuccess}
	case llm.OutcomePartial:
		return Reply{Text: res.Text, Outcome: model.OutcomePartial}
	default:
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Kind))
		return Reply{Text: EmergencyFallback, Outcome: model.OutcomeFallback, Reason: string(res.Kind)}
	}
}

// BuildRequest converts history into a completion request. The first turn is
// the seeded greeting and is never forwarded. When MaxHistoryTurns is set only
// the most recent turns are kept, starting at a user turn.
func BuildRequest(prompt PromptConfig, history []model.Turn) *llm.CompletionRequest {
	if len(history) > 0 {
		history = history[1:]
	}
	if prompt.MaxHistoryTurns > 0 && len(history) > prompt.MaxHistoryTurns {
		history = history[len(history)-prompt.MaxHistoryTurns:]
	}
	for len(history) > 0 && history[0].Role != model.RoleUser {
		history = history[1:]
	}

	messages := make([]llm.ChatMessage, 0, len(history))
	for _, turn := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	return &llm.CompletionRequest{
		SystemPrompt: prompt.SystemPrompt,
		Model:        prompt.Model,
		Messages:     messages,
		MaxTokens:    prompt.MaxTokens,
		Temperature:  prompt.Temperature,
	}
}
