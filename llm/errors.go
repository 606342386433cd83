package llm

import (
	"errors"
	"fmt"
)

// ErrorKind is the canonical category of a provider failure.
type ErrorKind string

const (
	ErrorKindAuthentication  ErrorKind = "AUTHENTICATION_ERROR"
	ErrorKindRateLimit       ErrorKind = "RATE_LIMIT_ERROR"
	ErrorKindValidation      ErrorKind = "VALIDATION_ERROR"
	ErrorKindAPI             ErrorKind = "API_ERROR"
	ErrorKindNetwork         ErrorKind = "NETWORK_ERROR"
	ErrorKindNoModelsFound   ErrorKind = "NO_MODELS_FOUND"
	ErrorKindInvalidResponse ErrorKind = "INVALID_RESPONSE"
	ErrorKindModelNotFound   ErrorKind = "MODEL_NOT_FOUND"
	ErrorKindUnknown         ErrorKind = "UNKNOWN_ERROR"
)

// Retryable reports whether a failure of this kind is expected to be transient.
// Only rate limiting and server-side failures qualify; NETWORK_ERROR is not
// retried.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindRateLimit || k == ErrorKindAPI
}

func (k ErrorKind) String() string {
	return string(k)
}

// ProviderError is the only error type surfaced by a Provider.
type ProviderError struct {
	Kind       ErrorKind
	Message    string
	Provider   string
	StatusCode int   // 0 when no HTTP status was received
	Cause      error // Original failure, if any
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s [%s]", e.Provider, e.Message, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying failure.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a ProviderError without an HTTP status.
func NewProviderError(kind ErrorKind, provider, message string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     kind,
		Message:  message,
		Provider: provider,
		Cause:    cause,
	}
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// KindOf returns the kind of a ProviderError in the chain, or UNKNOWN_ERROR.
func KindOf(err error) ErrorKind {
	if perr, ok := AsProviderError(err); ok {
		return perr.Kind
	}
	return ErrorKindUnknown
}

// IsRetryable checks if an error is a retryable provider error.
func IsRetryable(err error) bool {
	if perr, ok := AsProviderError(err); ok {
		return perr.Kind.Retryable()
	}
	return false
}

// IsKind checks if an error is a provider error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if perr, ok := AsProviderError(err); ok {
		return perr.Kind == kind
	}
	return false
}
