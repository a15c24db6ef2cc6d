// Package chaterrors maps failures of a chat turn to a user-facing ChatError.
//
// Classification is substring matching on the lower-cased error text, so the
// result is a best-effort hint: providers word their errors differently and
// nothing guarantees a stable taxonomy.
package chaterrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

type Type string

const (
	TypeNetwork          Type = "network"
	TypeAPI              Type = "api"
	TypeRateLimit        Type = "rate_limit"
	TypeAPIKey           Type = "api_key"
	TypeModelUnavailable Type = "model_unavailable"
	TypeTimeout          Type = "timeout"
	TypeUnknown          Type = "unknown"
)

// ChatError describes one failed turn.
type ChatError struct {
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ChatError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// Now is the clock used to stamp classifications.
var Now = time.Now

// IsAborted reports whether err is a user-initiated cancellation. Aborted
// turns end quietly and are never classified.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Classify returns the ChatError for err. The first matching rule wins.
func Classify(err error) ChatError {
	if err == nil || err.Error() == "" {
		return unknown()
	}

	if isNetwork(err) {
		return ChatError{
			Type:      TypeNetwork,
			Message:   "Network connection failed",
			Details:   "Please check your internet connection",
			Retryable: true,
			Timestamp: Now(),
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ChatError{
			Type:      TypeRateLimit,
			Message:   "Rate limit exceeded",
			Details:   "Please wait a moment before trying again",
			Retryable: true,
			Timestamp: Now(),
		}
	case strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return ChatError{
			Type:      TypeAPIKey,
			Message:   "API key is invalid or missing",
			Details:   "Please check your API key in settings",
			Retryable: false,
			Timestamp: Now(),
		}
	case strings.Contains(msg, "model") && (strings.Contains(msg, "not found") || strings.Contains(msg, "unavailable")):
		return ChatError{
			Type:      TypeModelUnavailable,
			Message:   "Selected model is unavailable",
			Details:   "Please try a different model",
			Retryable: false,
			Timestamp: Now(),
		}
	case strings.Contains(msg, "timeout") || errors.Is(err, context.DeadlineExceeded):
		return ChatError{
			Type:      TypeTimeout,
			Message:   "Request timed out",
			Details:   "The model took too long to respond",
			Retryable: true,
			Timestamp: Now(),
		}
	}

	return ChatError{
		Type:      TypeAPI,
		Message:   err.Error(),
		Retryable: true,
		Timestamp: Now(),
	}
}

// FromRecovered classifies a value obtained from recover(). Values that are
// errors go through Classify; anything else is UNKNOWN.
func FromRecovered(v any) ChatError {
	if err, ok := v.(error); ok {
		return Classify(err)
	}
	return unknown()
}

// Describe formats the text shown in place of the failed assistant reply.
func Describe(err error) string {
	if err == nil {
		return "Error: Unknown error occurred"
	}
	return fmt.Sprintf("Error: %s", err.Error())
}

func unknown() ChatError {
	return ChatError{
		Type:      TypeUnknown,
		Message:   "An unexpected error occurred",
		Retryable: true,
		Timestamp: Now(),
	}
}

// isNetwork matches transport-level failures. A url.Error that only wraps a
// context error or a timeout is left to the later rules.
func isNetwork(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !opErr.Timeout()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !urlErr.Timeout()
	}
	return false
}
