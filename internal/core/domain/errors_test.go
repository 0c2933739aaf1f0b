package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrInvalidState", ErrInvalidState, "invalid state"},
		{"ErrInvalidOperation", ErrInvalidOperation, "invalid operation"},
		{"ErrUnavailable", ErrUnavailable, "service unavailable"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrForbidden", ErrForbidden, "forbidden"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidArgument,
		ErrInvalidState,
		ErrInvalidOperation,
		ErrUnavailable,
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorsIs(t *testing.T) {
	// Wrapped sentinels must still match at boundaries
	wrapped := fmt.Errorf("enqueue job: %w", ErrConflict)
	if !errors.Is(wrapped, ErrConflict) {
		t.Error("wrapped ErrConflict should match ErrConflict")
	}

	if errors.Is(ErrNotFound, ErrUnauthorized) {
		t.Error("ErrNotFound should not match ErrUnauthorized")
	}
}
