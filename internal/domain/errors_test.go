package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEngineErrorError(t *testing.T) {
	err := NewEngineError(CodeNotFound, "entry missing", "id=abc", "req-1")

	if !strings.Contains(err.Error(), CodeNotFound) {
		t.Errorf("Expected error string to contain code, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "entry missing") {
		t.Errorf("Expected error string to contain message, got %q", err.Error())
	}
	if err.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"not found", ErrNotFound, CodeNotFound},
		{"wrapped not found", fmt.Errorf("remove: %w", ErrNotFound), CodeNotFound},
		{"duplicate", ErrDuplicateEntry, CodeDuplicateEntry},
		{"invalid input", ErrInvalidInput, CodeInvalidInput},
		{"wrapped invalid input", fmt.Errorf("update: %w", ErrInvalidInput), CodeInvalidInput},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeForError(tt.err); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrNotFound, ErrDuplicateEntry) {
		t.Error("ErrNotFound and ErrDuplicateEntry must be distinct")
	}
	if errors.Is(ErrDuplicateEntry, ErrInvalidInput) {
		t.Error("ErrDuplicateEntry and ErrInvalidInput must be distinct")
	}
}
