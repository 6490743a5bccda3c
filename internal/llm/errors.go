package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	httpclient "cv-match/pkg/http"

	"google.golang.org/genai"
)

// UpstreamError is a failed call to an LLM or embedding provider.
type UpstreamError struct {
	Provider   Provider
	Op         string
	StatusCode int // 0 when no response was received
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// TimeoutError is an upstream call that did not finish within its deadline.
type TimeoutError struct {
	Provider Provider
	Op       string
	Timeout  time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %v", e.Provider, e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// classify converts a raw transport/provider error into *UpstreamError or
// *TimeoutError. Caller cancellation is returned unchanged.
func classify(provider Provider, op string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}

	var te *TimeoutError
	var ue *UpstreamError
	if errors.As(err, &te) || errors.As(err, &ue) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Provider: provider, Op: op, Timeout: timeout, Cause: err}
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &UpstreamError{Provider: provider, Op: op, StatusCode: se.StatusCode, Message: se.Body, Cause: err}
	}

	if code, msg, ok := genaiStatus(err); ok {
		return &UpstreamError{Provider: provider, Op: op, StatusCode: code, Message: msg, Cause: err}
	}

	return &UpstreamError{Provider: provider, Op: op, Message: err.Error(), Cause: err}
}

func genaiStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
