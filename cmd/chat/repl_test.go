package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-chat/appstate"
	"ai-chat/chat"
	"ai-chat/chaterrors"
	"ai-chat/config"
	"ai-chat/llm"
	"ai-chat/localstore"
	"ai-chat/models"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"a/alpha","name":"Alpha","context_length":1000},{"id":"b/beta","name":"Beta"}]}`)
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "overload") {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
			return
		}
		fmt.Fprint(w, "data:{\"type\":\"content\",\"content\":\"Hi \"}\n\n")
		fmt.Fprint(w, "data:{\"type\":\"content\",\"content\":\"there\"}\n\n")
		fmt.Fprint(w, "data:{\"type\":\"usage\",\"usage\":{\"inputTokens\":100,\"outputTokens\":3}}\n\n")
		fmt.Fprint(w, "data:{\"type\":\"done\"}\n\n")
	})
	mux.HandleFunc("POST /chats/new", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"c1","title":null,"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}]`)
	})
	mux.HandleFunc("POST /messages/new", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"m-`+fmt.Sprint(time.Now().UnixNano())+`","chatId":"c1","role":"user","content":"x","createdAt":"2025-01-01T00:00:00Z"}`)
	})
	mux.HandleFunc("GET /chats", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"c9","title":"Old chat","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}]`)
	})
	mux.HandleFunc("GET /messages/c9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"m2","chatId":"c9","role":"assistant","content":"answer","createdAt":"2025-01-01T00:00:02Z"},`+
			`{"id":"m1","chatId":"c9","role":"user","content":"question","createdAt":"2025-01-01T00:00:01Z"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	srv := fakeAPI(t)
	cfg := config.AppConfig{
		Provider: config.ProviderConfig{OpenRouterURL: srv.URL},
		Client:   config.ClientConfig{APIBaseURL: srv.URL, Transport: "remote", CatalogTTL: time.Hour},
	}
	var out bytes.Buffer
	p := newPrinter(&out, &out)
	st, err := appstate.New(cfg, localstore.NewMemoryStorage(), p)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return &repl{st: st, p: p, out: &out}, &out
}

func run(t *testing.T, r *repl, line string) {
	t.Helper()
	quit, err := r.handle(context.Background(), line)
	require.NoError(t, err, line)
	require.False(t, quit)
}

func TestREPL_SelectModelAndChat(t *testing.T) {
	r, out := newTestREPL(t)

	_, err := r.handle(context.Background(), "hello")
	assert.ErrorIs(t, err, chat.ErrNoModel)

	run(t, r, "/models alp")
	assert.Contains(t, out.String(), "a/alpha")
	assert.NotContains(t, out.String(), "b/beta")

	run(t, r, "/model a/alpha")
	require.NotNil(t, r.st.Selection.Selected())

	_, err = r.handle(context.Background(), "/model nope/none")
	assert.Error(t, err)

	out.Reset()
	run(t, r, "hello")
	assert.Contains(t, out.String(), "Hi there")
	assert.Contains(t, out.String(), "tokens in=100 out=3")

	r.st.Session.Wait()
	out.Reset()
	run(t, r, "/usage")
	assert.Contains(t, out.String(), "input 100")
	assert.Contains(t, out.String(), "context 10.0%")
}

func TestREPL_SavedModels(t *testing.T) {
	r, out := newTestREPL(t)

	run(t, r, "/model b/beta")
	run(t, r, "/save")
	assert.True(t, r.st.Saved.IsSaved("b/beta"))
	run(t, r, "/save a/alpha")
	run(t, r, "/saved")
	assert.Contains(t, out.String(), "a/alpha")

	run(t, r, "/save a/alpha")
	assert.False(t, r.st.Saved.IsSaved("a/alpha"))
}

func TestREPL_OpenChatByIndex(t *testing.T) {
	r, out := newTestREPL(t)

	_, err := r.handle(context.Background(), "/open 1")
	assert.Error(t, err)

	run(t, r, "/chats")
	assert.Contains(t, out.String(), "Old chat")

	out.Reset()
	run(t, r, "/open 1")
	snap := r.st.Session.Snapshot()
	assert.Equal(t, "c9", snap.ChatID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "question", snap.Messages[0].Content)
	assert.Less(t, strings.Index(out.String(), "question"), strings.Index(out.String(), "answer"))
}

func TestREPL_Commands(t *testing.T) {
	r, _ := newTestREPL(t)

	quit, err := r.handle(context.Background(), "/quit")
	require.NoError(t, err)
	assert.True(t, quit)

	_, err = r.handle(context.Background(), "/bogus")
	assert.ErrorIs(t, err, errUnknownCommand)

	_, err = r.handle(context.Background(), "/retry")
	assert.ErrorIs(t, err, chat.ErrNothingToRetry)

	run(t, r, "/key sk-user")
	assert.Equal(t, "sk-user", r.st.APIKey())
	run(t, r, "/key clear")
	assert.Empty(t, r.st.APIKey())
}

func TestPrinter_StreamsOnlyNewText(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, &out)

	snap := func(content string) chat.Snapshot {
		return chat.Snapshot{Streaming: true, Messages: []chat.Message{
			{ID: chat.Provisional("u"), Role: models.RoleUser, Content: "q"},
			{ID: chat.Provisional("a"), Role: models.RoleAssistant, Content: content},
		}}
	}
	p.Update(snap(""))
	p.Update(snap("Hel"))
	p.Update(snap("Hello"))
	p.Update(snap("Hello"))
	p.finish(chat.Outcome{State: chat.Delivered, Usage: &llm.Usage{InputTokens: 1, OutputTokens: 2}})

	assert.Equal(t, 1, strings.Count(out.String(), "Hello"))
	assert.Equal(t, 1, strings.Count(out.String(), "assistant"))

	out.Reset()
	p.Update(snap("par"))
	p.finish(chat.Outcome{State: chat.Failed, Assistant: chat.Message{Content: "Error: boom"}})
	assert.Contains(t, out.String(), "Error: boom")

	out.Reset()
	p.Notify(chat.Notice{Kind: chat.NoticeTurnFailed, Retry: true})
	assert.Contains(t, out.String(), "/retry")
}

func TestREPL_DismissError(t *testing.T) {
	r, out := newTestREPL(t)

	run(t, r, "/dismiss")
	assert.Contains(t, out.String(), "no error to dismiss")

	run(t, r, "/model a/alpha")
	out.Reset()
	run(t, r, "overload")
	assert.Contains(t, out.String(), "/retry")

	snap := r.st.Session.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, chaterrors.TypeRateLimit, snap.Error.Type)

	out.Reset()
	run(t, r, "/dismiss")
	assert.Contains(t, out.String(), "dismissed rate_limit error")
	assert.Nil(t, r.st.Session.Snapshot().Error)
}
