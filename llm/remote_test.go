package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-chat/models"
)

func collect(t *testing.T, s Stream) []string {
	t.Helper()
	var out []string
	for s.Next() {
		out = append(out, s.Delta())
	}
	return out
}

func TestRemoteProvider_StreamsContentAndUsage(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data:{\"type\":\"content\",\"content\":\"Hi\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\" there\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"usage\",\"usage\":{\"inputTokens\":5,\"outputTokens\":2}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))
	defer srv.Close()

	p := NewRemoteProvider(srv.URL, nil)
	s, err := p.Stream(context.Background(), Request{
		Model:        "gpt-x",
		Instructions: "be brief",
		Messages:     []Message{{Role: models.RoleUser, Content: "Hello"}},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Hi", " there"}, collect(t, s))
	assert.NoError(t, s.Err())
	require.NotNil(t, s.Usage())
	assert.Equal(t, Usage{InputTokens: 5, OutputTokens: 2}, *s.Usage())

	assert.Equal(t, "gpt-x", got.Model)
	assert.Equal(t, "be brief", got.Instructions)
	assert.Equal(t, "Hello", got.Messages[0].Content)
}

func TestRemoteProvider_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"Hel\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":\"upstream rate limit\"}\n\n")
	}))
	defer srv.Close()

	s, err := NewRemoteProvider(srv.URL, nil).Stream(context.Background(), Request{
		Model: "m", Messages: []Message{{Role: models.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Hel"}, collect(t, s))
	assert.EqualError(t, s.Err(), "upstream rate limit")
}

func TestRemoteProvider_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"partial\"}\n\n")
	}))
	defer srv.Close()

	s, err := NewRemoteProvider(srv.URL, nil).Stream(context.Background(), Request{
		Model: "m", Messages: []Message{{Role: models.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"partial"}, collect(t, s))
	assert.Error(t, s.Err())
}

func TestRemoteProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"too many requests"}`)
	}))
	defer srv.Close()

	_, err := NewRemoteProvider(srv.URL, nil).Stream(context.Background(), Request{
		Model: "m", Messages: []Message{{Role: models.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "too many requests")
}

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{Messages: []Message{{Content: "x"}}}.Validate(), ErrNoModel)
	assert.ErrorIs(t, Request{Model: "m"}.Validate(), ErrNoMessages)
	assert.NoError(t, Request{Model: "m", Messages: []Message{{Content: "x"}}}.Validate())
}
