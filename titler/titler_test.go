package titler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ai-chat/db"
	"ai-chat/eventbus"
	"ai-chat/events"
	"ai-chat/models"
	"ai-chat/repositories"
)

type stubGenerator struct {
	title string
	err   error
	calls int
	got   string
}

func (g *stubGenerator) GenerateTitle(_ context.Context, first string) (Result, error) {
	g.calls++
	g.got = first
	if g.err != nil {
		return Result{}, g.err
	}
	return Result{Title: g.title, ModelName: "stub"}, nil
}

type stubQuota struct{ allow bool }

func (q stubQuota) WaitAndReserve(context.Context) (bool, error) { return q.allow, nil }

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

type fixture struct {
	chats    *repositories.SQLChatRepository
	messages *repositories.SQLMessageRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return fixture{repositories.NewSQLChatRepository(conn), repositories.NewSQLMessageRepository(conn)}
}

func (f fixture) seed(t *testing.T, id string, contents ...string) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.chats.Insert(ctx, &models.Chat{ID: id, CreatedAt: base, UpdatedAt: base}))
	for i, c := range contents {
		require.NoError(t, f.messages.Insert(ctx, &models.Message{
			ID:        id + "-" + string(rune('a'+i)),
			ChatID:    id,
			Role:      models.RoleUser,
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestService_TitlesFromFirstUserMessage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "c1", "how do goroutines work", "and channels?")
	gen := &stubGenerator{title: "Goroutines explained"}
	pub := &capturePublisher{}
	svc := NewService(f.chats, f.messages, gen, stubQuota{allow: true}, pub)

	require.NoError(t, svc.HandleTitleRequested(context.Background(), events.NewChatTitleRequested("c1", "test")))

	assert.Equal(t, "how do goroutines work", gen.got)
	c, err := f.chats.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c.Title)
	assert.Equal(t, "Goroutines explained", *c.Title)
	assert.Equal(t, []string{eventbus.TopicChatEvents.Base()}, pub.topics)
}

func TestService_Skips(t *testing.T) {
	ctx := context.Background()

	t.Run("missing chat", func(t *testing.T) {
		f := newFixture(t)
		gen := &stubGenerator{title: "x"}
		svc := NewService(f.chats, f.messages, gen, nil, nil)
		require.NoError(t, svc.HandleTitleRequested(ctx, events.NewChatTitleRequested("nope", "test")))
		assert.Zero(t, gen.calls)
	})

	t.Run("already titled", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "hi")
		require.NoError(t, f.chats.UpdateTitle(ctx, "c1", "Existing"))
		gen := &stubGenerator{title: "x"}
		svc := NewService(f.chats, f.messages, gen, nil, nil)
		require.NoError(t, svc.HandleTitleRequested(ctx, events.NewChatTitleRequested("c1", "test")))
		assert.Zero(t, gen.calls)
	})

	t.Run("no user message", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1")
		gen := &stubGenerator{title: "x"}
		svc := NewService(f.chats, f.messages, gen, nil, nil)
		require.NoError(t, svc.HandleTitleRequested(ctx, events.NewChatTitleRequested("c1", "test")))
		assert.Zero(t, gen.calls)
	})

	t.Run("quota exhausted", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "hi")
		gen := &stubGenerator{title: "x"}
		svc := NewService(f.chats, f.messages, gen, stubQuota{allow: false}, nil)
		require.NoError(t, svc.HandleTitleRequested(ctx, events.NewChatTitleRequested("c1", "test")))
		assert.Zero(t, gen.calls)
	})

	t.Run("model declines", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "c1", "hi")
		svc := NewService(f.chats, f.messages, &stubGenerator{err: ErrNoTitle}, nil, nil)
		require.NoError(t, svc.HandleTitleRequested(ctx, events.NewChatTitleRequested("c1", "test")))
	})
}

func TestService_GeneratorErrorIsRetried(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "c1", "hi")
	svc := NewService(f.chats, f.messages, &stubGenerator{err: errors.New("503")}, nil, nil)

	err := svc.HandleTitleRequested(context.Background(), events.NewChatTitleRequested("c1", "test"))
	assert.ErrorContains(t, err, "503")
}

func TestService_HandleDispatchesByType(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "c1", "hi")
	gen := &stubGenerator{title: "Greeting"}
	svc := NewService(f.chats, f.messages, gen, nil, nil)

	evt, err := eventbus.NewJSONEvent("", events.NewChatTitleRequested("c1", "test"), 0)
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), evt))
	assert.Equal(t, 1, gen.calls)

	other, err := eventbus.NewJSONEvent("", events.NewChatTitled("c1", "t", "m", "test"), 0)
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), other))
	assert.Equal(t, 1, gen.calls)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{`  "Go  channels."  `, "Go channels"},
		{"Hello!?", "Hello"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTitle(tt.in))
	}
	long := NormalizeTitle("a very long title that keeps going and going well past the limit of sixty runes")
	assert.LessOrEqual(t, len([]rune(long)), maxTitleRunes)
}

type stubModels struct {
	text string
}

func (m stubModels) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(m.text, genai.RoleModel)}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 4,
		},
	}, nil
}

func TestGeminiGenerator(t *testing.T) {
	ctx := context.Background()

	g := &GeminiGenerator{models: stubModels{text: "```json\n{\"title\":\"Rust vs Go\",\"error\":null}\n```"}, model: "m"}
	res, err := g.GenerateTitle(ctx, "compare rust and go")
	require.NoError(t, err)
	assert.Equal(t, "Rust vs Go", res.Title)
	assert.Equal(t, int64(12), res.InputTokens)
	assert.Equal(t, int64(4), res.OutputTokens)

	g = &GeminiGenerator{models: stubModels{text: `{"title":"","error":"gibberish"}`}, model: "m"}
	_, err = g.GenerateTitle(ctx, "asdf")
	assert.ErrorIs(t, err, ErrNoTitle)

	g = &GeminiGenerator{models: stubModels{text: "not json"}, model: "m"}
	_, err = g.GenerateTitle(ctx, "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTitle)
}
