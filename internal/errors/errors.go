// Package errors provides centralized error definitions and error handling utilities
// for the git2doc client. It defines the failure taxonomy shared by the session and
// document components, error constructors with context wrapping, and classification
// helpers.
//
// # Error Kinds
//
// Every failure the client surfaces belongs to one of four kinds:
//   - KindValidation: malformed or missing input, detected before any network call
//   - KindAuth: invalid credentials, duplicate account, missing or expired token
//   - KindTransport: network unreachable or an undecodable response
//   - KindRemote: a well-formed error response from the service
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewValidationError("repository URL is required").WithField("repo_url")
//	err := errors.NewRemoteError(http.StatusBadRequest, "Email already registered")
//	err := errors.NewTransportError("GET /api/documents", cause)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoSession) { ... }
//	if errors.KindOf(err) == errors.KindAuth { ... }
//	msg := errors.UserMessage(err, "Failed to load documents")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind classifies a failure by where it was detected.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate in this module.
	KindUnknown Kind = iota
	// KindValidation is a local precondition failure; no request was issued.
	KindValidation
	// KindAuth is an authentication or authorization failure.
	KindAuth
	// KindTransport is a network or decoding failure.
	KindTransport
	// KindRemote is a well-formed error response from the service.
	KindRemote
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrNoSession indicates that an authenticated call was attempted without a stored token.
	ErrNoSession = New("no active session")
	// ErrUnauthorized indicates that the service rejected the credentials or token.
	ErrUnauthorized = New("unauthorized")
	// ErrSessionCorrupted indicates that persisted session data could not be decoded.
	ErrSessionCorrupted = New("session data corrupted")
)

// Document-related sentinel errors
var (
	// ErrJobNotFound indicates that a job is unknown locally or remotely.
	ErrJobNotFound = New("document not found")
	// ErrJobNotReady indicates that a job has not reached the completed state.
	ErrJobNotReady = New("document is not ready yet")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrClosed indicates that the owning component was torn down.
	ErrClosed = New("component closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ClientError is the base interface for all git2doc errors.
type ClientError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Kind reports which part of the taxonomy this error belongs to.
	Kind() Kind

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// Message returns the human-readable reason without the kind prefix.
	Message() string
}

// baseError provides common functionality for all error types.
type baseError struct {
	kind      Kind
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error { return e.cause }

// Kind returns the error kind.
func (e *baseError) Kind() Kind { return e.kind }

// Severity returns the error severity.
func (e *baseError) Severity() Severity { return e.severity }

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool { return e.retryable }

// Message returns the human-readable reason.
func (e *baseError) Message() string { return e.message }

func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// ValidationError represents invalid input detected before any request.
//
// Example:
//
//	err := errors.NewValidationError("repository URL is required")
//	err = err.WithField("repo_url").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			kind:     KindValidation,
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%q", fmt.Sprint(e.Value)))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Authentication
// -----------------------------------------------------------------------------

// AuthError represents a rejected credential, duplicate account, or a
// missing/expired token.
type AuthError struct {
	baseError
	StatusCode int
}

// NewAuthError creates a new AuthError. A zero status code means the failure
// was detected locally (for example, no token on disk).
func NewAuthError(statusCode int, message string, cause error) *AuthError {
	return &AuthError{
		baseError: baseError{
			kind:     KindAuth,
			message:  message,
			cause:    cause,
			severity: SeverityWarning,
		},
		StatusCode: statusCode,
	}
}

// Error returns the formatted error message.
func (e *AuthError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("auth error", parts)
}

// Is checks if this error matches the target.
func (e *AuthError) Is(target error) bool {
	if _, ok := target.(*AuthError); ok {
		return true
	}
	if target == ErrUnauthorized && e.StatusCode != 0 {
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

// TransportError represents a network failure or a response that could not
// be decoded.
type TransportError struct {
	baseError
	Operation string
}

// NewTransportError creates a new TransportError for the given operation,
// e.g. "GET /api/documents".
func NewTransportError(operation string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			kind:      KindTransport,
			message:   "request failed",
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
		Operation: operation,
	}
}

// WithMessage replaces the default message.
func (e *TransportError) WithMessage(message string) *TransportError {
	e.message = message
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	return e.format("transport error", parts)
}

// Message returns the message followed by the cause, since the cause is the
// only thing that tells a user why the network call failed.
func (e *TransportError) Message() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// -----------------------------------------------------------------------------
// Remote
// -----------------------------------------------------------------------------

// RemoteError represents a well-formed error response from the service.
// Message holds the service-provided detail; it is empty when the service
// returned none.
type RemoteError struct {
	baseError
	StatusCode int
	notFound   error
}

// NewRemoteError creates a new RemoteError. Server-side failures (5xx) are
// marked retryable.
func NewRemoteError(statusCode int, detail string) *RemoteError {
	return &RemoteError{
		baseError: baseError{
			kind:      KindRemote,
			message:   detail,
			severity:  SeverityError,
			retryable: statusCode >= 500,
		},
		StatusCode: statusCode,
	}
}

// Error returns the formatted error message.
func (e *RemoteError) Error() string {
	msg := e.message
	if msg == "" {
		msg = "service returned an error"
	}
	return fmt.Sprintf("remote error [status=%d]: %s", e.StatusCode, msg)
}

// WithNotFound sets the sentinel a 404 from this call matches, such as
// ErrJobNotFound for a document route.
func (e *RemoteError) WithNotFound(sentinel error) *RemoteError {
	e.notFound = sentinel
	return e
}

// Is checks if this error matches the target.
func (e *RemoteError) Is(target error) bool {
	if _, ok := target.(*RemoteError); ok {
		return true
	}
	return e.notFound != nil && target == e.notFound && e.StatusCode == 404
}

// -----------------------------------------------------------------------------
// Job State
// -----------------------------------------------------------------------------

// JobError reports an operation rejected locally because of what the client
// knows about a job: it is unknown, or it has not completed.
type JobError struct {
	baseError
	JobID    int64
	Status   string
	sentinel error
}

// NewJobNotFoundError reports a job that is not in the local sequence.
func NewJobNotFoundError(jobID int64) *JobError {
	return &JobError{
		baseError: baseError{
			kind:     KindValidation,
			message:  "Document not found",
			severity: SeverityWarning,
		},
		JobID:    jobID,
		sentinel: ErrJobNotFound,
	}
}

// NewJobNotReadyError reports a job whose last known status is not completed.
func NewJobNotReadyError(jobID int64, status string) *JobError {
	return &JobError{
		baseError: baseError{
			kind:     KindValidation,
			message:  "Document is not ready yet",
			severity: SeverityWarning,
		},
		JobID:    jobID,
		Status:   status,
		sentinel: ErrJobNotReady,
	}
}

// Error returns the formatted error message.
func (e *JobError) Error() string {
	parts := []string{fmt.Sprintf("id=%d", e.JobID)}
	if e.Status != "" {
		parts = append(parts, fmt.Sprintf("status=%s", e.Status))
	}
	return e.format("job error", parts)
}

// Is checks if this error matches the target.
func (e *JobError) Is(target error) bool {
	if _, ok := target.(*JobError); ok {
		return true
	}
	return target == e.sentinel || target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// KindOf returns the kind of the first ClientError in err's chain.
func KindOf(err error) Kind {
	var ce ClientError
	if As(err, &ce) {
		return ce.Kind()
	}
	return KindUnknown
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce ClientError
	if As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ClientError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var ce ClientError
	if As(err, &ce) {
		return ce.Severity()
	}
	return SeverityError
}

// UserMessage returns a human-readable reason for err. The service-provided
// detail wins; otherwise fallback is returned. Validation and transport
// errors always carry their own message.
//
// Example:
//
//	reason := errors.UserMessage(err, "Login failed. Please check your credentials.")
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ce ClientError
	if As(err, &ce) {
		if msg := ce.Message(); msg != "" {
			return msg
		}
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
