package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// AgentCallError wraps a failed capability call with a retryability flag.
type AgentCallError struct {
	Op        string // "plan", "generate" or "embed"
	Err       error
	Retryable bool
}

func (e *AgentCallError) Error() string {
	return fmt.Sprintf("agent %s call failed: %v", e.Op, e.Err)
}

func (e *AgentCallError) Unwrap() error {
	return e.Err
}

// NewAgentCallError classifies err and wraps it for the given operation.
func NewAgentCallError(op string, err error) *AgentCallError {
	return &AgentCallError{Op: op, Err: err, Retryable: IsRetryableError(err)}
}

// APIError represents a provider API error with HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryableAPIError returns true if the API error has a retryable status code.
func IsRetryableAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// IsRetryableError reports whether an error is transient. Typed checks come
// first; string matching is a fallback for untyped errors surfaced by
// provider SDKs.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var ace *AgentCallError
	if errors.As(err, &ace) {
		return ace.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if IsRetryableAPIError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	untyped := []string{
		"rate limit",
		"resource_exhausted",
		"unavailable",
		"connection refused",
		"connection reset",
		"eof",
		"timeout",
		"no such host",
	}
	for _, pattern := range untyped {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
