// Package model defines data structures for the medical assistant.
package model

import (
	"time"
)

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message in a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StrategyKind names the reply strategy a session was provisioned with.
type StrategyKind string

const (
	StrategyRuleBased StrategyKind = "rule"
	StrategyRemote    StrategyKind = "remote"
)

// ParseStrategyKind maps a configuration value to a StrategyKind.
func ParseStrategyKind(s string) (StrategyKind, bool) {
	switch StrategyKind(s) {
	case StrategyRuleBased, StrategyRemote:
		return StrategyKind(s), true
	case "rules", "rule-based", "rule_based":
		return StrategyRuleBased, true
	default:
		return "", false
	}
}
