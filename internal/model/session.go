package model

import (
	"time"
)

// SessionView is the read-only representation of a session returned by the API.
type SessionView struct {
	ID        string       `json:"id"`
	Strategy  StrategyKind `json:"strategy"`
	Busy      bool         `json:"busy"`
	CreatedAt time.Time    `json:"created_at"`
	Turns     []Turn       `json:"turns"`
}

// CreateSessionRequest is the request to start a new chat session.
type CreateSessionRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

// SendMessageRequest is the request to submit a user utterance.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse carries the assistant turn produced for a message.
type SendMessageResponse struct {
	Reply Turn `json:"reply"`
}

// ListTurnsResponse is the response for listing a session's history.
type ListTurnsResponse struct {
	Turns []Turn `json:"turns"`
	Busy  bool   `json:"busy"`
}

// QuickActionsResponse lists input shortcuts shown next to the chat box.
type QuickActionsResponse struct {
	Actions    []string `json:"actions"`
	Disclaimer string   `json:"disclaimer"`
}

// ErrorEvent represents an error pushed over the event stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
