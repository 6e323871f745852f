package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "validation"},
		{KindAuth, "auth"},
		{KindTransport, "transport"},
		{KindRemote, "remote"},
		{KindUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("repository URL is required").WithField("repo_url").WithValue("")

	if err.Kind() != KindValidation {
		t.Errorf("Kind() = %v, want %v", err.Kind(), KindValidation)
	}
	if err.IsRetryable() {
		t.Error("validation errors must not be retryable")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected errors.Is(err, ErrInvalidInput)")
	}
	want := `validation error [field=repo_url, value=""]: repository URL is required`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAuthError(t *testing.T) {
	t.Run("remote rejection matches ErrUnauthorized", func(t *testing.T) {
		err := NewAuthError(http.StatusUnauthorized, "Invalid credentials", nil)
		if !errors.Is(err, ErrUnauthorized) {
			t.Error("expected ErrUnauthorized match")
		}
		if KindOf(err) != KindAuth {
			t.Errorf("KindOf() = %v, want auth", KindOf(err))
		}
		if got := err.Error(); got != "auth error [status=401]: Invalid credentials" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("local missing token matches ErrNoSession", func(t *testing.T) {
		err := NewAuthError(0, "not logged in", ErrNoSession)
		if !errors.Is(err, ErrNoSession) {
			t.Error("expected ErrNoSession match through cause")
		}
		if errors.Is(err, ErrUnauthorized) {
			t.Error("local failure should not match ErrUnauthorized")
		}
	})
}

func TestTransportError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewTransportError("GET /api/documents", cause)

	if !err.IsRetryable() {
		t.Error("transport errors should be retryable")
	}
	if !strings.Contains(err.Error(), "op=GET /api/documents") {
		t.Errorf("Error() = %q, want operation", err.Error())
	}
	if got := UserMessage(err, "fallback"); got != "request failed: dial tcp: connection refused" {
		t.Errorf("UserMessage() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
}

func TestRemoteError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		detail    string
		retryable bool
		notFound  bool
	}{
		{"bad request", http.StatusBadRequest, "Email already registered", false, false},
		{"not found", http.StatusNotFound, "Document not found", false, true},
		{"server error", http.StatusInternalServerError, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRemoteError(tt.status, tt.detail)
			if err.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", err.IsRetryable(), tt.retryable)
			}
			if errors.Is(err, ErrJobNotFound) {
				t.Error("unscoped error matched ErrJobNotFound")
			}
			err = err.WithNotFound(ErrJobNotFound)
			if errors.Is(err, ErrJobNotFound) != tt.notFound {
				t.Errorf("Is(ErrJobNotFound) = %v, want %v", !tt.notFound, tt.notFound)
			}
		})
	}
}

func TestJobError(t *testing.T) {
	notFound := NewJobNotFoundError(10)
	if !errors.Is(notFound, ErrJobNotFound) || errors.Is(notFound, ErrJobNotReady) {
		t.Error("not-found error matched the wrong sentinel")
	}
	if notFound.Error() != "job error [id=10]: Document not found" {
		t.Errorf("Error() = %q", notFound.Error())
	}

	notReady := NewJobNotReadyError(10, "processing")
	if !errors.Is(notReady, ErrJobNotReady) {
		t.Error("expected ErrJobNotReady match")
	}
	if KindOf(notReady) != KindValidation {
		t.Errorf("KindOf() = %v, want validation", KindOf(notReady))
	}
	if got := UserMessage(notReady, "fallback"); got != "Document is not ready yet" {
		t.Errorf("UserMessage() = %q", got)
	}
	if !strings.Contains(notReady.Error(), "status=processing") {
		t.Errorf("Error() = %q", notReady.Error())
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"nil", nil, "x", ""},
		{"service detail wins", NewRemoteError(400, "Email already registered"), "fallback", "Email already registered"},
		{"empty detail uses fallback", NewRemoteError(400, ""), "Phone number not registered", "Phone number not registered"},
		{"wrapped", Wrap(NewAuthError(401, "Invalid credentials", nil), "login"), "fallback", "Invalid credentials"},
		{"plain error with fallback", New("boom"), "Failed to load documents", "Failed to load documents"},
		{"plain error without fallback", New("boom"), "", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err, tt.fallback); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v", got)
	}
	if got := GetSeverity(NewValidationError("x")); got != SeverityWarning {
		t.Errorf("GetSeverity(validation) = %v", got)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrapf(ErrJobNotReady, "download %d", 10)
	if err.Error() != "download 10: document is not ready yet" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrJobNotReady) {
		t.Error("Wrapf should preserve the chain")
	}
}
