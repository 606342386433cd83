package anthropic

import (
	"context"
	"errors"
	"net"
	"net/url"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/tidwall/gjson"
)

// toSignal converts an Anthropic SDK failure into a transport signal.
// Context errors are returned unchanged.
func toSignal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		body := gjson.Parse(apiErr.RawJSON())
		msg := body.Get("error.message").String()
		if msg == "" {
			msg = apiErr.Error()
		}
		return &llm.TransportErrorSignal{
			StatusCode:        apiErr.StatusCode,
			ProviderErrorType: body.Get("error.type").String(),
			Message:           msg,
			Cause:             err,
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return llm.NewConnectionSignal(err.Error(), err)
	}
	return err
}
