package model

import (
	"time"
)

// Outcome classifies how an assistant reply was produced.
type Outcome string

const (
	OutcomeIntent   Outcome = "intent"
	OutcomeNoMatch  Outcome = "no_match"
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial"
	OutcomeFallback Outcome = "fallback"
)

// ResolutionEvent records the result of resolving one user turn.
type ResolutionEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Strategy  StrategyKind   `json:"strategy"`
	Outcome   Outcome        `json:"outcome"`
	IntentID  string         `json:"intent_id,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
