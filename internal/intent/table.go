// Package intent holds the ordered intent table and the substring matcher
// that resolves normalized user text to a canned response.
package intent

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTable is returned when a table is built without intents.
	ErrEmptyTable = errors.New("intent table must contain at least one intent")
	// ErrInvalidIntent is wrapped by every intent validation failure.
	ErrInvalidIntent = errors.New("invalid intent")
)

// Intent maps trigger patterns to one canned response.
type Intent struct {
	ID       string   `yaml:"id" json:"id"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Response string   `yaml:"response" json:"response"`
}

// Table is an immutable, ordered intent registry.
//
// Order is part of the matching contract: when patterns of two intents both
// occur in the input, the intent registered first wins. Reordering a table
// changes which response users see.
type Table struct {
	intents []Intent
}

// NewTable validates intents and registers them in the order given. Patterns
// are stored in normalized form.
func NewTable(intents ...Intent) (*Table, error) {
	if len(intents) == 0 {
		return nil, ErrEmptyTable
	}

	seen := make(map[string]struct{}, len(intents))
	registered := make([]Intent, 0, len(intents))

	for i, in := range intents {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidIntent, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidIntent, id)
		}
		seen[id] = struct{}{}

		if len(in.Patterns) == 0 {
			return nil, fmt.Errorf("%w: %q has no patterns", ErrInvalidIntent, id)
		}
		if strings.TrimSpace(in.Response) == "" {
			return nil, fmt.Errorf("%w: %q has an empty response", ErrInvalidIntent, id)
		}

		patterns := make([]string, len(in.Patterns))
		for j, p := range in.Patterns {
			np := Normalize(p)
			if strings.TrimSpace(np) == "" {
				return nil, fmt.Errorf("%w: %q pattern %d is blank after normalization", ErrInvalidIntent, id, j)
			}
			patterns[j] = np
		}

		registered = append(registered, Intent{
			ID:       id,
			Patterns: patterns,
			Response: in.Response,
		})
	}

	return &Table{intents: registered}, nil
}

// Match returns the first intent, in registration order, owning a pattern that
// occurs in normalized. Patterns are tried in listed order and the first hit
// returns immediately. The boolean is false when nothing matches.
func (t *Table) Match(normalized string) (Intent, bool) {
	if t == nil {
		return Intent{}, false
	}
	for _, in := range t.intents {
		for _, p := range in.Patterns {
			if strings.Contains(normalized, p) {
				return in, true
			}
		}
	}
	return Intent{}, false
}

// Lookup returns the intent registered under id.
func (t *Table) Lookup(id string) (Intent, bool) {
	for _, in := range t.intents {
		if in.ID == id {
			return in, true
		}
	}
	return Intent{}, false
}

// Intents returns a copy of the registered intents in order.
func (t *Table) Intents() []Intent {
	out := make([]Intent, len(t.intents))
	for i, in := range t.intents {
		out[i] = Intent{
			ID:       in.ID,
			Patterns: append([]string(nil), in.Patterns...),
			Response: in.Response,
		}
	}
	return out
}

// Len returns the number of registered intents.
func (t *Table) Len() int {
	return len(t.intents)
}

// Source yields the intent table to match against.
type Source interface {
	Current() *Table
}

// Current returns t, so a fixed table is its own Source.
func (t *Table) Current() *Table {
	return t
}
