package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageBytes bounds the size of a single utterance.
const MaxMessageBytes = 8 * 1024

// ValidateMessageContent rejects content the transport should never accept.
// Blank content is left to the session, which reports it as empty input.
func ValidateMessageContent(content string) error {
	if len(content) > MaxMessageBytes {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}
