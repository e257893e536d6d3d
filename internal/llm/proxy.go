package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UnavailableReply is the local substitute used when the proxy answers
// without a reply.
const UnavailableReply = "AI is currently unavailable."

type proxyRequest struct {
	Message string `json:"message"`
}

type proxyResponse struct {
	Reply *string `json:"reply"`
}

// ProxyClient talks to a chat backend that accepts {"message"} and answers
// {"reply"}. Only the latest user message is forwarded.
type ProxyClient struct {
	url        string
	httpClient *http.Client
}

// NewProxyClient creates a proxy client. WithBaseURL is the full endpoint URL.
func NewProxyClient(opts ...Option) (*ProxyClient, error) {
	o := applyOptions(opts)
	if o.baseURL == "" {
		return nil, errors.New("proxy endpoint URL is required")
	}
	return &ProxyClient{
		url:        o.baseURL,
		httpClient: o.httpClient,
	}, nil
}

// Name returns the provider name.
func (c *ProxyClient) Name() string {
	return string(ProviderProxy)
}

// Complete posts the latest user message to the proxy.
func (c *ProxyClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(proxyRequest{Message: req.LastUserMessage()})
	if err != nil {
		return nil, protocolError(c.Name(), fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, protocolError(c.Name(), fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(c.Name(), err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, protocolError(c.Name(), &StatusError{
			StatusCode: res.StatusCode,
			URL:        c.url,
			Body:       string(buf),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, networkError(c.Name(), fmt.Errorf("read response body: %w", err))
	}

	var payload proxyResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, protocolError(c.Name(), fmt.Errorf("decode response: %w", err))
	}

	if payload.Reply == nil || strings.TrimSpace(*payload.Reply) == "" {
		return &CompletionResponse{
			Content:   UnavailableReply,
			Partial:   true,
			LatencyMs: time.Since(start).Milliseconds(),
		}, nil
	}

	return &CompletionResponse{
		Content:   *payload.Reply,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
