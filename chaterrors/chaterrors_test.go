package chaterrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := Now
	Now = func() time.Time { return at }
	t.Cleanup(func() { Now = prev })
	return at
}

func TestClassify(t *testing.T) {
	at := fixedClock(t)

	dialErr := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}

	tests := []struct {
		name      string
		err       error
		wantType  Type
		retryable bool
		wantMsg   string
	}{
		{"nil", nil, TypeUnknown, true, "An unexpected error occurred"},
		{"empty message", errors.New(""), TypeUnknown, true, "An unexpected error occurred"},
		{"network", dialErr, TypeNetwork, true, "Network connection failed"},
		{"dns", &net.DNSError{Err: "no such host", Name: "openrouter.ai"}, TypeNetwork, true, "Network connection failed"},
		{"rate limit text", errors.New("Rate Limit reached for model"), TypeRateLimit, true, "Rate limit exceeded"},
		{"429", errors.New("provider returned 429"), TypeRateLimit, true, "Rate limit exceeded"},
		{"api key", errors.New("Invalid API key provided"), TypeAPIKey, false, "API key is invalid or missing"},
		{"401", errors.New("status 401"), TypeAPIKey, false, "API key is invalid or missing"},
		{"unauthorized", errors.New("Unauthorized"), TypeAPIKey, false, "API key is invalid or missing"},
		{"model not found", errors.New("model foo/bar not found"), TypeModelUnavailable, false, "Selected model is unavailable"},
		{"model unavailable", errors.New("The model is currently unavailable"), TypeModelUnavailable, false, "Selected model is unavailable"},
		{"not found without model", errors.New("chat not found"), TypeAPI, true, "chat not found"},
		{"timeout text", errors.New("upstream timeout"), TypeTimeout, true, "Request timed out"},
		{"deadline", fmt.Errorf("stream: %w", context.DeadlineExceeded), TypeTimeout, true, "Request timed out"},
		{"generic", errors.New("boom"), TypeAPI, true, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.Equal(t, at, got.Timestamp)
		})
	}
}

func TestClassify_RateLimitWinsOverAPIKey(t *testing.T) {
	got := Classify(errors.New("429: api key quota"))
	assert.Equal(t, TypeRateLimit, got.Type)
}

func TestFromRecovered(t *testing.T) {
	assert.Equal(t, TypeUnknown, FromRecovered("string panic").Type)
	assert.Equal(t, TypeUnknown, FromRecovered(42).Type)
	assert.Equal(t, TypeAPI, FromRecovered(errors.New("bad gateway")).Type)
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(context.Canceled))
	assert.True(t, IsAborted(fmt.Errorf("read: %w", context.Canceled)))
	assert.False(t, IsAborted(context.DeadlineExceeded))
	assert.False(t, IsAborted(nil))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Error: boom", Describe(errors.New("boom")))
	assert.Equal(t, "Error: Unknown error occurred", Describe(nil))
}
