package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/workshop-tools/boardscan/internal/util"
)

// AuthorizationError is a terminal rejection of the credential or the
// account balance. It is never retried and never triggers model fallback.
type AuthorizationError struct {
	StatusCode  int
	Remediation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed (HTTP %d): %s", e.StatusCode, e.Remediation)
}

// CapabilityError is a terminal rejection because the chosen model cannot
// process image input. The message names capable alternatives.
type CapabilityError struct {
	Model string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf(
		"model %q does not support vision input; switch to google/gemini-2.0-flash or anthropic/claude-sonnet-4-5",
		e.Model,
	)
}

// TransientError marks a failure as retryable with exponential backoff:
// timeouts, connection failures, rate limits and service-unavailable
// responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPError is any other non-2xx response. It is retried once with a flat
// delay, then the model's attempt budget is treated as exhausted.
//
// Important: do not include raw response bodies here (can leak tokens).
// Snippet is a redacted, truncated hint.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Snippet    string
}

func (e *HTTPError) Error() string {
	parts := []string{
		fmt.Sprintf("openrouter api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// failureClass is the tag inspected by the attempt loop to select retry
// behavior. Classifying here keeps the decision table in one place instead
// of spreading it over error-type assertions at every call site.
type failureClass int

const (
	classTerminal failureClass = iota
	classRetryable
	classRetryableOnce
)

func classify(err error) failureClass {
	if err == nil {
		return classTerminal
	}
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return classTerminal
	}
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return classTerminal
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return classRetryable
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classRetryableOnce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return classRetryable
	}
	return classTerminal
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(op, model string, statusCode int, status string, body []byte) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return &AuthorizationError{
			StatusCode:  statusCode,
			Remediation: "API key invalid or missing; set OPENROUTER_API_KEY (see .env.example)",
		}
	case statusCode == http.StatusPaymentRequired:
		return &AuthorizationError{
			StatusCode:  statusCode,
			Remediation: "insufficient OpenRouter balance; top up at https://openrouter.ai/credits",
		}
	case statusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "vision"):
		return &CapabilityError{Model: model}
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable:
		return &TransientError{Err: &HTTPError{
			Op:         op,
			StatusCode: statusCode,
			Status:     status,
			Snippet:    redactAndTruncate(body),
		}}
	default:
		return &HTTPError{
			Op:         op,
			StatusCode: statusCode,
			Status:     status,
			Snippet:    redactAndTruncate(body),
		}
	}
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
