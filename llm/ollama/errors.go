package ollama

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/ollama/ollama/api"
)

// toSignal converts an Ollama client failure into a transport signal.
// Context errors are returned unchanged.
func toSignal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return &llm.TransportErrorSignal{
			StatusCode: statusErr.StatusCode,
			Message:    msg,
			Cause:      err,
		}
	}

	// 401 responses come back as AuthorizationError, not StatusError.
	var authErr api.AuthorizationError
	if errors.As(err, &authErr) {
		return &llm.TransportErrorSignal{
			StatusCode: authErr.StatusCode,
			Message:    authErr.Error(),
			Cause:      err,
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return llm.NewConnectionSignal(err.Error(), err)
	}
	return err
}
