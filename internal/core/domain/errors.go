package domain

import (
	"fmt"
)

// TransportCategory buckets connection-level failures into the human-readable
// groups surfaced to callers.
type TransportCategory int

const (
	TransportGeneric TransportCategory = iota
	TransportAuth
	TransportRateLimited
	TransportUpstreamUnavailable
	TransportUpstreamTimeout
	TransportTimeout
	TransportConnectivity
)

func (c TransportCategory) String() string {
	switch c {
	case TransportAuth:
		return "auth"
	case TransportRateLimited:
		return "rate_limit"
	case TransportUpstreamUnavailable:
		return "upstream_unavailable"
	case TransportUpstreamTimeout:
		return "upstream_timeout"
	case TransportTimeout:
		return "timeout"
	case TransportConnectivity:
		return "connectivity"
	default:
		return "generic"
	}
}

// StreamError is a connection-level streaming failure below the fallback
// threshold. Retryable by the caller.
type StreamError struct {
	Err        error
	Category   TransportCategory
	StatusCode int
}

func (e *StreamError) Error() string {
	switch e.Category {
	case TransportAuth:
		return "API key is invalid or lacks permission - check the credentials in your provider settings"
	case TransportRateLimited:
		return "too many requests - the provider is rate limiting, please retry shortly"
	case TransportUpstreamUnavailable:
		return "AI service is temporarily unavailable, please retry shortly"
	case TransportUpstreamTimeout:
		return "AI service took too long to respond, please retry shortly"
	case TransportTimeout:
		return "request timed out - check your network connection"
	case TransportConnectivity:
		return "cannot reach the AI service - check your network settings"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("connection failed (status %d), please retry shortly", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return "connection failed, please retry shortly"
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func NewStreamError(category TransportCategory, statusCode int, err error) *StreamError {
	return &StreamError{
		Category:   category,
		StatusCode: statusCode,
		Err:        err,
	}
}

// FallbackError is the distinguished variant raised once the consecutive
// streaming failure threshold is reached. It is a signal to switch to the
// non-streaming transport, not a plain failure, and must not surface to end
// callers.
type FallbackError struct {
	Err      error
	Failures int
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("streaming failed %d times in a row, switching to non-streaming mode: %v", e.Failures, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

func NewFallbackError(failures int, cause error) *FallbackError {
	return &FallbackError{Failures: failures, Err: cause}
}

// UpstreamError is an application-level error payload returned by the
// provider inside an otherwise well-formed event.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "provider returned an unknown error"
	}
	return e.Message
}
