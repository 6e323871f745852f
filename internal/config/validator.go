package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "poll.interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Bounds for numeric settings.
const (
	maxTimeoutSeconds   = 600
	minPollIntervalMs   = 100
	maxPollIntervalMs   = 10 * 60 * 1000
	maxCheckTimeoutMs   = 5 * 60 * 1000
	maxLogSizeMB        = 1000
	maxStoragePathBytes = 4096
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidOutputFormats returns the list of valid output formats
func ValidOutputFormats() []string {
	return []string{"table", "json", "yaml"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateStorage()...)
	errors = append(errors, c.validatePoll()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

// validateAPI validates the APIConfig
func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.API.BaseURL)
	switch {
	case c.API.BaseURL == "":
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must not be empty",
		})
	case err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "":
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must be an absolute http or https URL",
		})
	}

	if c.API.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.timeout_seconds",
			Value:   c.API.TimeoutSeconds,
			Message: "must be positive",
		})
	} else if c.API.TimeoutSeconds > maxTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "api.timeout_seconds",
			Value:   c.API.TimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxTimeoutSeconds),
		})
	}

	if strings.ContainsAny(c.API.UserAgent, "\r\n") {
		errors = append(errors, ValidationError{
			Field:   "api.user_agent",
			Value:   c.API.UserAgent,
			Message: "must not contain line breaks",
		})
	}

	return errors
}

// validateStorage validates the StorageConfig
func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError

	if c.Storage.Dir == "" {
		return errors
	}
	if strings.ContainsRune(c.Storage.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "storage.dir",
			Value:   c.Storage.Dir,
			Message: "path contains invalid null character",
		})
	}
	if len(c.Storage.Dir) > maxStoragePathBytes {
		errors = append(errors, ValidationError{
			Field:   "storage.dir",
			Value:   c.Storage.Dir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxStoragePathBytes),
		})
	}

	return errors
}

// validatePoll validates the PollConfig
func (c *Config) validatePoll() []ValidationError {
	var errors []ValidationError

	if c.Poll.IntervalMs < minPollIntervalMs || c.Poll.IntervalMs > maxPollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "poll.interval_ms",
			Value:   c.Poll.IntervalMs,
			Message: fmt.Sprintf("must be between %d and %d", minPollIntervalMs, maxPollIntervalMs),
		})
	}

	if c.Poll.CheckTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.check_timeout_ms",
			Value:   c.Poll.CheckTimeoutMs,
			Message: "must be positive",
		})
	} else if c.Poll.CheckTimeoutMs > maxCheckTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   "poll.check_timeout_ms",
			Value:   c.Poll.CheckTimeoutMs,
			Message: fmt.Sprintf("exceeds maximum of %d", maxCheckTimeoutMs),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateOutput validates the OutputConfig
func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		})
	}

	return errors
}
