package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/throttle/pkg/throttle"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "journal.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateReport(&cfg.Report)...)
	errs = append(errs, validateClasses(cfg.Classes)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (valid: json, text, console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "path must start with /",
			})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (valid: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "journal.path",
			Message: "path is required when the journal is enabled",
		})
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention",
			Message: "retention cannot be negative",
		})
	}

	return errs
}

func validateReport(cfg *ReportConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return []FieldError{{
			Field:   "report.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		}}
	}
	return nil
}

func validateClasses(classes []ClassConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(classes))

	for i, c := range classes {
		field := fmt.Sprintf("classes[%d]", i)
		if c.Name != "" {
			field = fmt.Sprintf("classes.%s", c.Name)
		}

		if c.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		} else if seen[c.Name] {
			errs = append(errs, FieldError{Field: field + ".name", Message: "duplicate class name"})
		}

		if c.Extends != "" && !seen[c.Extends] {
			errs = append(errs, FieldError{
				Field:   field + ".extends",
				Message: fmt.Sprintf("parent class %q must be declared before this class", c.Extends),
			})
		}

		if c.IsRoot() {
			errs = append(errs, validateSite(field+".site", c.Site)...)
		} else if c.Site != "" {
			errs = append(errs, FieldError{
				Field:   field + ".site",
				Message: "site is only allowed on resource roots; set resource_root to give the class its own connection",
			})
		}

		if c.Throttle != nil && !c.IsRoot() {
			errs = append(errs, FieldError{
				Field:   field + ".throttle",
				Message: "admission happens on the resource root; set resource_root to give the class its own window",
			})
		} else if c.Throttle != nil {
			if _, err := throttle.ParseOptions(c.Options()); err != nil {
				errs = append(errs, FieldError{Field: field + ".throttle", Message: err.Error()})
			}
		}

		if c.Name != "" {
			seen[c.Name] = true
		}
	}

	return errs
}

func validateSite(field, site string) []FieldError {
	if site == "" {
		return []FieldError{{Field: field, Message: "site is required for resource roots"}}
	}
	u, err := url.Parse(site)
	if err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []FieldError{{Field: field, Message: "URL scheme must be http or https"}}
	}
	if u.Host == "" {
		return []FieldError{{Field: field, Message: "URL must include a host"}}
	}
	return nil
}
