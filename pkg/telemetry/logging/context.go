package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ClassKey is the context key for throttle class names.
	ClassKey contextKey = "class"

	// RunIDKey is the context key for CLI run identifiers.
	RunIDKey contextKey = "run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithClass adds a throttle class name to the context.
func WithClass(ctx context.Context, class string) context.Context {
	return context.WithValue(ctx, ClassKey, class)
}

// GetClass retrieves the throttle class name from the context.
func GetClass(ctx context.Context) string {
	if class, ok := ctx.Value(ClassKey).(string); ok {
		return class
	}
	return ""
}

// WithRunID adds a run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run identifier from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// extractContextFields returns slog key/value pairs for every known field
// present in ctx.
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var fields []any
	if v := GetRunID(ctx); v != "" {
		fields = append(fields, string(RunIDKey), v)
	}
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, string(RequestIDKey), v)
	}
	if v := GetClass(ctx); v != "" {
		fields = append(fields, string(ClassKey), v)
	}
	return fields
}
