package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const chatCompletionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Drink plenty of fluids."}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`

func newOpenAITestClient(t *testing.T, srv *httptest.Server) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL+"/v1"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func testRequest() *CompletionRequest {
	return &CompletionRequest{
		SystemPrompt: "You are a medical assistant.",
		Model:        "gpt-4o-mini",
		MaxTokens:    256,
		Temperature:  0.5,
		Messages: []ChatMessage{
			{Role: "user", Content: "I have a fever"},
			{Role: "assistant", Content: "How high is it?"},
			{Role: "user", Content: "39 degrees"},
		},
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	require.Error(t, err)
}

func TestOpenAIComplete_Success(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer srv.Close()

	resp, err := newOpenAITestClient(t, srv).Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "Drink plenty of fluids.", resp.Content)
	require.Equal(t, 12, resp.TokensIn)
	require.Equal(t, 5, resp.TokensOut)
	require.False(t, resp.Partial)

	require.Equal(t, "gpt-4o-mini", body["model"])
	require.EqualValues(t, 256, body["max_tokens"])
	require.InDelta(t, 0.5, body["temperature"], 0.001)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	first := msgs[0].(map[string]any)
	require.Equal(t, "system", first["role"])
	require.Equal(t, "You are a medical assistant.", first["content"])
	last := msgs[3].(map[string]any)
	require.Equal(t, "user", last["role"])
	require.Equal(t, "39 degrees", last["content"])
}

func TestOpenAIComplete_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer srv.Close()

	req := testRequest()
	req.Temperature = 0

	_, err := newOpenAITestClient(t, srv).Complete(context.Background(), req)
	require.NoError(t, err)

	temp, ok := body["temperature"]
	require.True(t, ok, "temperature must be present in the request body")
	require.InDelta(t, 0, temp, 1e-6)
}

func TestOpenAIComplete_FullEndpointURL(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer srv.Close()

	for _, endpoint := range []string{srv.URL + "/v1/chat/completions", srv.URL + "/v1/chat/completions/", srv.URL + "/v1"} {
		c, err := NewOpenAIClient("sk-test", WithBaseURL(endpoint), WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		_, err = c.Complete(context.Background(), testRequest())
		require.NoError(t, err, endpoint)
		require.Equal(t, "/v1/chat/completions", path, endpoint)
	}
}

func TestOpenAIComplete_ProtocolFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`},
		{"unauthorized non-json", http.StatusUnauthorized, `nope`},
		{"malformed body", http.StatusOK, `not json`},
		{"no choices", http.StatusOK, `{"id":"x","choices":[]}`},
		{"empty content", http.StatusOK, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newOpenAITestClient(t, srv).Complete(context.Background(), testRequest())
			require.Error(t, err)
			require.Equal(t, ProtocolError, KindOf(err))
		})
	}
}

func TestOpenAIComplete_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := newOpenAITestClient(t, srv)
	srv.Close()

	_, err := c.Complete(context.Background(), testRequest())
	require.Error(t, err)
	require.Equal(t, NetworkError, KindOf(err))
}
