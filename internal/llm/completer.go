package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

// Outcome discriminates a Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartial
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "failure"
	}
}

// Result is what a completion produced. Text is set for success and partial
// outcomes; Kind and Err are set for failures.
type Result struct {
	Outcome  Outcome
	Text     string
	Kind     FailureKind
	Err      error
	Response *CompletionResponse
}

// Success wraps a reply text.
func Success(text string) Result {
	return Result{Outcome: OutcomeSuccess, Text: text}
}

// PartialSuccess wraps a local substitute for a missing reply.
func PartialSuccess(text string) Result {
	return Result{Outcome: OutcomePartial, Text: text}
}

// Failure wraps a classified error.
func Failure(kind FailureKind, err error) Result {
	return Result{Outcome: OutcomeFailure, Kind: kind, Err: err}
}

// Completer issues one completion call per Send and never returns an error:
// transport errors, bad statuses, malformed bodies and panics all become a
// Failure result. It does not retry.
type Completer struct {
	client  Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewCompleter wraps client. A positive timeout bounds every call.
func NewCompleter(client Client, timeout time.Duration, log *logger.Logger) *Completer {
	return &Completer{
		client:  client,
		timeout: timeout,
		logger:  log,
	}
}

// Provider returns the name of the wrapped client.
func (c *Completer) Provider() string {
	if c.client == nil {
		return "none"
	}
	return c.client.Name()
}

// Send performs the completion call.
func (c *Completer) Send(ctx context.Context, req *CompletionRequest) (result Result) {
	if c.client == nil {
		return Failure(NetworkError, errors.New("no completion backend configured"))
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			result = Failure(ProtocolError, fmt.Errorf("completion client panicked: %v", p))
		}
		metrics.RecordCompletion(c.Provider(), result.Outcome.String(), time.Since(start).Seconds())
		if result.Outcome == OutcomeFailure {
			c.logger.Warn("completion failed",
				zap.String("provider", c.Provider()),
				zap.String("kind", string(result.Kind)),
				zap.Error(result.Err),
			)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return Failure(KindOf(err), err)
	}
	if resp == nil {
		return Failure(ProtocolError, errors.New("empty completion response"))
	}

	if resp.Partial {
		r := PartialSuccess(resp.Content)
		r.Response = resp
		return r
	}
	r := Success(resp.Content)
	r.Response = resp
	return r
}
