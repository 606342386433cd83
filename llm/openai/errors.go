package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/aschepis/backscratcher/llmguard/llm"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// toSignal converts an OpenAI client failure into a transport signal.
// Context errors are returned unchanged.
func toSignal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.TransportErrorSignal{
			StatusCode:        apiErr.HTTPStatusCode,
			ProviderErrorCode: codeString(apiErr.Code),
			ProviderErrorType: apiErr.Type,
			Message:           apiErr.Message,
			Cause:             err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.TransportErrorSignal{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Cause:      err,
		}
	}

	if isConnectionError(err) {
		return llm.NewConnectionSignal(err.Error(), err)
	}
	return err
}

// signalFromBody builds a signal from a raw error response, reading the
// OpenAI error envelope when there is one.
func signalFromBody(status int, body []byte) *llm.TransportErrorSignal {
	sig := &llm.TransportErrorSignal{StatusCode: status}
	if gjson.ValidBytes(body) {
		e := gjson.GetBytes(body, "error")
		sig.Message = e.Get("message").String()
		sig.ProviderErrorType = e.Get("type").String()
		sig.ProviderErrorCode = e.Get("code").String()
	}
	if sig.Message == "" {
		sig.Message = fmt.Sprintf("unexpected status %d", status)
	}
	return sig
}

// codeString normalizes APIError.Code, which may be a string or a number.
func codeString(code any) string {
	switch c := code.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
