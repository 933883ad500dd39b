package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes crossing the provider boundary.
const (
	CodeRateLimited        = "rate_limited"
	CodeNotFound           = "not_found"
	CodeUpstream           = "upstream_error"
	CodeTimeout            = "timeout"
	CodeBadResponse        = "bad_response"
	CodeConfig             = "config_error"
	CodeAllFailed          = "all_providers_failed"
	CodeCapabilityMissing  = "capability_not_available"
	CodeProviderNotFound   = "provider_not_found"
)

// ProviderError is the only error kind (together with its two named
// subtypes) that may cross an adapter boundary. Adapters rewrap every
// upstream-native failure into one of the three.
type ProviderError struct {
	Provider   string `json:"provider"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Retryable  bool   `json:"retryable"`
	Cause      error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError creates a generic provider error.
func NewProviderError(provider, code, message string, statusCode int, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

// WithCause attaches the underlying error.
func (e *ProviderError) WithCause(err error) *ProviderError {
	e.Cause = err
	return e
}

// RateLimitError signals upstream throttling. Always retryable.
type RateLimitError struct {
	ProviderError
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// NewRateLimitError creates a rate-limit error with a retry hint.
func NewRateLimitError(provider string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		ProviderError: ProviderError{
			Provider:   provider,
			Code:       CodeRateLimited,
			Message:    "rate limited by upstream",
			StatusCode: http.StatusTooManyRequests,
			Retryable:  true,
		},
		RetryAfter: retryAfter,
	}
}

// NotFoundError signals that an identifier resolved to nothing at one
// provider. Absence at one source does not imply absence everywhere,
// so routers treat it as "try the next candidate".
type NotFoundError struct {
	ProviderError
}

// NewNotFoundError creates a not-found error for an identifier.
func NewNotFoundError(provider, identifier string) *NotFoundError {
	return &NotFoundError{
		ProviderError: ProviderError{
			Provider:   provider,
			Code:       CodeNotFound,
			Message:    fmt.Sprintf("no data for %q", identifier),
			StatusCode: http.StatusNotFound,
			Retryable:  false,
		},
	}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsRetryable reports whether the provider marked err as retryable.
// Unknown error kinds are not retryable.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// StatusOf extracts the HTTP-equivalent status carried by err,
// defaulting to 500 for unknown kinds.
func StatusOf(err error) int {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.StatusCode
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.StatusCode
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return pe.StatusCode
	}
	return http.StatusInternalServerError
}
