package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an auth failure for retry and rendering decisions.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindTokenExpired
	KindNetwork
	KindUnauthorized
	KindProviderError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindTokenExpired:
		return "TokenExpired"
	case KindNetwork:
		return "Network"
	case KindUnauthorized:
		return "Unauthorized"
	case KindProviderError:
		return "ProviderError"
	default:
		return "Unknown"
	}
}

// AuthError is the typed failure that crosses the auth service boundary.
// It carries a machine-readable code, a user-facing message, and (for HTTP
// failures) the original status and body so callers can dig deeper.
type AuthError struct {
	Kind        ErrorKind
	Code        string
	Message     string
	UserMessage string
	Timestamp   time.Time
	Status      int
	Body        string
	cause       error
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// Retryable returns true if the failure is a transient condition the
// request gateway may retry with backoff.
func (e *AuthError) Retryable() bool {
	return e.Kind == KindNetwork
}

// NewError creates an AuthError of the given kind.
func NewError(kind ErrorKind, code, message string) *AuthError {
	return &AuthError{
		Kind:        kind,
		Code:        code,
		Message:     message,
		UserMessage: message,
		Timestamp:   time.Now(),
	}
}

// WrapError creates an AuthError wrapping an underlying cause.
func WrapError(kind ErrorKind, code, message string, cause error) *AuthError {
	e := NewError(kind, code, message)
	e.cause = cause
	return e
}

// AsAuthError extracts an *AuthError from err, or wraps err as Unknown so
// callers always receive the typed form.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return WrapError(KindUnknown, "unknown", err.Error(), err)
}
