package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQuestionRunes bounds the question length accepted by the query path.
const MaxQuestionRunes = 1000

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Wrapped.Error() + ": " + e.Field
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ValidateQuestion checks a user question before it reaches any collaborator.
func ValidateQuestion(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return NewValidationError("question", q, ErrInvalidQuestion)
	}
	if utf8.RuneCountInString(trimmed) > MaxQuestionRunes {
		return NewValidationError("question", Truncate(q, 40), ErrInvalidQuestion)
	}
	return nil
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// NormalizeText collapses internal whitespace and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
