package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrapped by the typed errors below so callers can use errors.Is.
var (
	ErrMissingSource        = errors.New("source not found")
	ErrEmptyDictionary      = errors.New("occupation dictionary is empty")
	ErrUnknownSourceType    = errors.New("unknown source type")
	ErrUnresolvedOccupation = errors.New("occupation not in dictionary")
	ErrEmptyText            = errors.New("empty fact text")
	ErrMalformedRow         = errors.New("malformed row")
	ErrFilteredRow          = errors.New("row rejected by filter")
	ErrEmptyEmbedding       = errors.New("empty embedding")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrInvalidQuestion      = errors.New("invalid question")
	ErrCannotProcess        = errors.New("question cannot be processed")
)

// FatalError aborts an ingestion run or a request.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatal creates a FatalError.
func NewFatal(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: err}
}

// SkipError marks a record that produced no fact. The run continues.
type SkipError struct {
	Source string
	Key    string
	Text   string
	Reason error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %s %s: %v (text=%q)", e.Source, e.Key, e.Reason, e.Text)
}

func (e *SkipError) Unwrap() error { return e.Reason }

// NewSkip creates a SkipError with text truncated for logging.
func NewSkip(source, key, text string, reason error) *SkipError {
	return &SkipError{Source: source, Key: key, Text: Truncate(text, 80), Reason: reason}
}

// CollaboratorError wraps a failed call to an external service
// (embedding provider, vector store, LLM, graph).
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NewCollaboratorError creates a CollaboratorError.
func NewCollaboratorError(collaborator, op string, err error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// UserFacingError carries a message that is safe to show to the person
// asking the question.
type UserFacingError struct {
	Message string
	Err     error
}

func (e *UserFacingError) Error() string {
	return e.Message
}

func (e *UserFacingError) Unwrap() error { return e.Err }

// CannotProcessMessage is returned to users when no usable embedding exists.
const CannotProcessMessage = "Maaf, sistem tidak dapat memproses pertanyaan Anda. Silakan coba dengan kalimat yang berbeda."

// NewCannotProcess creates the user-facing "cannot process" error.
func NewCannotProcess() *UserFacingError {
	return &UserFacingError{Message: CannotProcessMessage, Err: ErrCannotProcess}
}

// IsFatal reports whether err should abort the current run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
