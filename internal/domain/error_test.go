package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "category.create",
				Message: "invalid input",
			},
			expected: "category.create: invalid input",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "item.create",
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "item.create: failed to save: database connection failed",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "domain error", err: ErrDuplicateName, expected: ECONFLICT},
		{name: "wrapped domain error", err: fmt.Errorf("outer: %w", ErrCategoryNotFound), expected: ENOTFOUND},
		{name: "plain error", err: errors.New("boom"), expected: EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage_HidesInternalDetails(t *testing.T) {
	internal := Internal(errors.New("pq: connection refused"), "order.create", "failed to persist order")
	msg := ErrorMessage(internal)
	if msg != "An internal error occurred. Please try again later." {
		t.Errorf("ErrorMessage() leaked internal details: %q", msg)
	}

	integrity := Integrity("category.descendants", "parent chain revisits node")
	if got := ErrorMessage(integrity); got != "An internal error occurred. Please try again later." {
		t.Errorf("ErrorMessage() leaked integrity details: %q", got)
	}

	conflict := ErrInsufficientStock
	if got := ErrorMessage(conflict); got != "Insufficient stock" {
		t.Errorf("ErrorMessage() = %q, want conflict message", got)
	}
}

func TestWrapError_NilPassthrough(t *testing.T) {
	if err := WrapError(nil, EINTERNAL, "op", "msg"); err != nil {
		t.Errorf("WrapError(nil) = %v, want nil", err)
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(ErrInvalidTransition, ECONFLICT) {
		t.Error("IsCode(ErrInvalidTransition, ECONFLICT) = false, want true")
	}
	if IsCode(ErrInvalidTransition, EINVALID) {
		t.Error("IsCode(ErrInvalidTransition, EINVALID) = true, want false")
	}
}
