// Package logging provides structured logging for the throttle tooling.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Context-aware logging with request IDs and class names
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logger.Info("request admitted",
//	    "class", "widgets",
//	    "waited_ms", 1234,
//	)
//
//	// Context-aware logging
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "fetching")  // Includes request_id automatically
//
// Libraries that accept a *slog.Logger receive it through Slog().
package logging
