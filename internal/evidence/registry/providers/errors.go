// Package providers defines the failure taxonomy shared by every upstream source.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kycdesk/internal/platform/resilience"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider returned invalid/malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorNotFound indicates the requested record doesn't exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
	// RetryAfter is the wait the upstream asked for on a 429 or 503.
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func (e *ProviderError) Transient() bool { return e.Retryable }

// Unhealthy is false for failures that are answers about the subject: not-found,
// bad credentials and malformed payloads never count against the breaker.
func (e *ProviderError) Unhealthy() bool {
	switch e.Category {
	case ErrorNotFound, ErrorAuthentication, ErrorBadData:
		return false
	default:
		return true
	}
}

func (e *ProviderError) Backoff() time.Duration { return e.RetryAfter }

var _ resilience.Failure = (*ProviderError)(nil)

// NewProviderError creates a normalized provider error. Timeouts, outages and rate
// limits are retryable; everything else is final.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromStatus classifies a non-2xx HTTP status.
func FromStatus(providerID string, status int) *ProviderError {
	msg := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, providerID, msg, nil)
	case status >= 500, status == http.StatusRequestTimeout:
		return NewProviderError(ErrorProviderOutage, providerID, msg, nil)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, providerID, msg, nil)
	case status == http.StatusNotFound:
		return NewProviderError(ErrorNotFound, providerID, msg, nil)
	default:
		return NewProviderError(ErrorInternal, providerID, msg, nil)
	}
}

// FromResponse classifies a non-2xx response and keeps its Retry-After header.
func FromResponse(providerID string, resp *http.Response) *ProviderError {
	pe := FromStatus(providerID, resp.StatusCode)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return pe
}

// parseRetryAfter accepts delay-seconds or an HTTP date. Anything else is zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// FromTransport classifies an error returned by the HTTP client itself.
func FromTransport(providerID string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	}
	return NewProviderError(ErrorProviderOutage, providerID, "request failed", err)
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	case resilience.IsCircuitOpen(err):
		return ErrorProviderOutage
	default:
		return ErrorInternal
	}
}

// Reason renders err for a failed SourceResult: "<category>: <message>".
func Reason(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		reason := string(pe.Category) + ": " + pe.Message
		if pe.RetryAfter > 0 {
			reason += fmt.Sprintf(" (retry after %s)", pe.RetryAfter)
		}
		return reason
	}
	if resilience.IsCircuitOpen(err) {
		return string(ErrorProviderOutage) + ": circuit open"
	}
	return string(GetCategory(err)) + ": " + err.Error()
}
