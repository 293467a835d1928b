package domain

import (
	"errors"
	"fmt"
	"time"
)

// Operational errors returned by the queue manager. Every mutating
// operation either fully succeeds with recomputed stats or fails with
// one of these, leaving state untouched.
var (
	ErrNotFound       = errors.New("queue entry not found")
	ErrDuplicateEntry = errors.New("queue entry already exists")
	// ErrInvalidInput is reserved for input validation at the engine
	// boundary. The scorer itself never validates; see RiskScorer.
	ErrInvalidInput = errors.New("invalid input")
)

// Error codes surfaced to transport layers.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeDuplicateEntry = "DUPLICATE_ENTRY"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeInternal       = "INTERNAL_ERROR"
)

// EngineError is the standardized error envelope returned to callers.
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError with timestamp.
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// CodeForError maps engine sentinel errors to transport error codes.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateEntry):
		return CodeDuplicateEntry
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}
