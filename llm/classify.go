package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Provider error codes and types that drive classification.
const (
	CodeRateLimitExceeded     = "rate_limit_exceeded"
	CodeInsufficientQuota     = "insufficient_quota"
	CodeContextLengthExceeded = "context_length_exceeded"
	TypeInvalidRequestError   = "invalid_request_error"
)

// TransportErrorSignal is the normalized view of a remote failure that every
// transport adapter must produce. The classifier reads nothing else.
type TransportErrorSignal struct {
	StatusCode        int    // 0 when no response was received
	ProviderErrorCode string // e.g. "rate_limit_exceeded"
	ProviderErrorType string // e.g. "invalid_request_error"
	Message           string
	NoResponse        bool // connection-level failure, nothing came back
	Cause             error
}

// Error implements the error interface.
func (s *TransportErrorSignal) Error() string {
	var b strings.Builder
	b.WriteString(s.Message)
	if s.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d", s.StatusCode)
		if s.ProviderErrorType != "" {
			fmt.Fprintf(&b, ", type %s", s.ProviderErrorType)
		}
		if s.ProviderErrorCode != "" {
			fmt.Fprintf(&b, ", code %s", s.ProviderErrorCode)
		}
		b.WriteString(")")
	}
	if b.Len() == 0 && s.Cause != nil {
		return s.Cause.Error()
	}
	return b.String()
}

// Unwrap returns the original failure.
func (s *TransportErrorSignal) Unwrap() error {
	return s.Cause
}

// NewConnectionSignal builds a signal for a failure where no response arrived.
func NewConnectionSignal(message string, cause error) *TransportErrorSignal {
	return &TransportErrorSignal{
		Message:    message,
		NoResponse: true,
		Cause:      cause,
	}
}

// Classify maps a transport signal to its canonical kind. The rules are
// evaluated in order and the first match wins, so a 500 carrying
// context_length_exceeded is a validation error.
func Classify(s *TransportErrorSignal) ErrorKind {
	if s == nil {
		return ErrorKindUnknown
	}
	switch {
	case s.StatusCode == http.StatusUnauthorized:
		return ErrorKindAuthentication
	case s.StatusCode == http.StatusTooManyRequests,
		s.ProviderErrorCode == CodeRateLimitExceeded,
		s.ProviderErrorCode == CodeInsufficientQuota:
		return ErrorKindRateLimit
	case s.ProviderErrorType == TypeInvalidRequestError,
		s.ProviderErrorCode == CodeContextLengthExceeded,
		strings.Contains(strings.ToLower(s.Message), CodeContextLengthExceeded):
		return ErrorKindValidation
	case s.StatusCode == http.StatusBadRequest:
		return ErrorKindValidation
	case s.StatusCode >= http.StatusInternalServerError:
		return ErrorKindAPI
	case s.StatusCode == 0 && s.NoResponse:
		return ErrorKindNetwork
	default:
		return ErrorKindUnknown
	}
}

// ClassifyError converts any failure into a ProviderError. ProviderErrors
// pass through untouched; transport signals are classified; anything else
// is UNKNOWN_ERROR. The original failure is always kept as the cause.
func ClassifyError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	if perr, ok := AsProviderError(err); ok {
		return perr
	}

	var sig *TransportErrorSignal
	if errors.As(err, &sig) {
		msg := sig.Message
		if msg == "" {
			msg = "request failed"
		}
		return &ProviderError{
			Kind:       Classify(sig),
			Message:    msg,
			Provider:   provider,
			StatusCode: sig.StatusCode,
			Cause:      err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrorKindUnknown, provider, "request cancelled", err)
	}

	return NewProviderError(ErrorKindUnknown, provider, "unexpected failure", err)
}
