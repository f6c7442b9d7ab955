package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/throttle/pkg/config"
)

func TestUsageError(t *testing.T) {
	err := NewUsageError("--count must be positive, got %d", -1)

	expected := "--count must be positive, got -1"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	expected := "command run failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestExitCode(t *testing.T) {
	validation := config.ValidationError{Errors: []config.FieldError{{Field: "classes", Message: "required"}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "generic", err: errors.New("boom"), want: ExitFailure},
		{name: "usage", err: NewUsageError("bad flag"), want: ExitUsage},
		{name: "wrapped usage", err: NewCommandError("run", NewUsageError("bad flag")), want: ExitUsage},
		{name: "validation", err: fmt.Errorf("configuration validation failed: %w", validation), want: ExitConfig},
		{name: "canceled", err: NewCommandError("run", context.Canceled), want: ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
