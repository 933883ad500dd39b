package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestNotFoundKind(t *testing.T) {
	err := NewNotFoundError("edgar", "ZZZZ")
	if !IsNotFound(err) {
		t.Fatal("expected not-found kind")
	}
	if IsRateLimited(err) {
		t.Fatal("not-found must not be rate-limited")
	}
	if IsRetryable(err) {
		t.Fatal("not-found must not be retryable")
	}
	if got := StatusOf(err); got != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestRateLimitKind(t *testing.T) {
	err := NewRateLimitError("fmp", 30*time.Second)
	if !IsRateLimited(err) {
		t.Fatal("expected rate-limited kind")
	}
	if IsNotFound(err) {
		t.Fatal("rate-limited must not be not-found")
	}
	if !IsRetryable(err) {
		t.Fatal("rate-limited must be retryable")
	}
	if got := StatusOf(err); got != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", got)
	}
	if err.RetryAfter != 30*time.Second {
		t.Fatalf("retry after = %v", err.RetryAfter)
	}
}

func TestGenericKind(t *testing.T) {
	err := NewProviderError("finnhub", CodeUpstream, "server error", http.StatusBadGateway, true)
	if IsNotFound(err) || IsRateLimited(err) {
		t.Fatal("generic kind must match neither subtype")
	}
	if !IsRetryable(err) {
		t.Fatal("retryable flag not honored")
	}
	if got := StatusOf(err); got != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", got)
	}
}

func TestStatusOfUnknownError(t *testing.T) {
	if got := StatusOf(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", got)
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("unknown kinds must not be retryable")
	}
}

func TestWrappedErrorsMatch(t *testing.T) {
	inner := NewNotFoundError("edgar", "AAPL")
	wrapped := fmt.Errorf("lookup: %w", inner)
	if !IsNotFound(wrapped) {
		t.Fatal("wrapped not-found not detected")
	}
}

func TestProviderErrorCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("edgar", CodeUpstream, "request failed", 0, true).WithCause(cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not unwrapped")
	}
	if msg := err.Error(); msg == "" {
		t.Fatal("empty message")
	}
}
