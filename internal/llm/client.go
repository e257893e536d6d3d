// Package llm provides completion clients for remote reply generation and the
// Completer boundary that turns every failure into a Result.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	SystemPrompt string
	Model        string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastUserMessage returns the content of the most recent user message.
func (r *CompletionRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64

	// Partial is set when the backend answered but without a reply, and
	// Content holds a local substitute.
	Partial bool
}

// Client is the interface for completion backends.
type Client interface {
	// Complete sends a completion request and returns the response. Errors
	// are *Error values carrying a FailureKind.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of completion backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderProxy     Provider = "proxy"
)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a client.
type Option func(*options)

// WithBaseURL points the client at a custom endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(baseURL)
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	return o
}

// NewClient creates a completion client for provider.
func NewClient(provider Provider, apiKey string, opts ...Option) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, opts...)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, opts...)
	case ProviderProxy:
		return NewProxyClient(opts...)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
}
