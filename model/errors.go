package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError wraps a failed model call with a transient/permanent
// classification. Only transient-class faults (network, timeout, rate limit,
// 5xx) are retried; everything else propagates immediately.
type TransportError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
	}
	return fmt.Sprintf("[%s] %s (retryable=%v)", e.Provider, e.Message, e.Retryable)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Cause }

// ErrorFromStatusCode classifies an HTTP status into a TransportError.
// Rate limits (429), request timeouts (408) and server errors (5xx) are
// transient; client errors are permanent.
func ErrorFromStatusCode(provider string, statusCode int, message string, cause error) *TransportError {
	te := &TransportError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
	switch {
	case statusCode == 408, statusCode == 429:
		te.Retryable = true
	case statusCode >= 500 && statusCode <= 599:
		te.Retryable = true
	default:
		te.Retryable = false
	}
	return te
}

// NetworkError wraps a connection-level failure as a retryable transport
// error.
func NetworkError(provider string, cause error) *TransportError {
	return &TransportError{
		Provider:  provider,
		Message:   "network error",
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether an error is safe to retry. Context
// cancellation is never retryable; net timeouts are; unclassified errors are
// treated as permanent so unknown faults surface immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
