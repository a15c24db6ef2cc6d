package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-chat/db"
	"ai-chat/eventbus"
	"ai-chat/events"
	"ai-chat/llm"
	"ai-chat/models"
	"ai-chat/repositories"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, _ string, e eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func newService(t *testing.T, pub eventbus.Publisher) *ChatService {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewChatService(repositories.NewSQLChatRepository(conn), repositories.NewSQLMessageRepository(conn), pub)
}

func int64p(v int64) *int64 { return &v }

func TestChatService_CreateMessageWithoutChatCreatesOne(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	svc := newService(t, pub)

	msg, err := svc.CreateMessage(ctx, CreateMessageInput{Role: models.RoleUser, Content: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ChatID)

	chats, err := svc.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, msg.ChatID, chats[0].ID)
	assert.Nil(t, chats[0].Title)

	require.Len(t, pub.events, 1)
	payload, err := eventbus.DecodeJSON[events.ChatTitleRequestedEvent](pub.events[0])
	require.NoError(t, err)
	assert.Equal(t, msg.ChatID, payload.ChatID)
	assert.Equal(t, events.ChatTitleRequested, payload.Type)
}

func TestChatService_CreateMessageIntoExistingChat(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	svc := newService(t, pub)

	c, err := svc.CreateChat(ctx, nil)
	require.NoError(t, err)

	first, err := svc.CreateMessage(ctx, CreateMessageInput{ChatID: c.ID, Role: models.RoleUser, Content: "q"})
	require.NoError(t, err)
	second, err := svc.CreateMessage(ctx, CreateMessageInput{
		ChatID: c.ID, Role: models.RoleAssistant, Content: "a",
		InputTokens: int64p(3), OutputTokens: int64p(7),
	})
	require.NoError(t, err)

	list, err := svc.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, int64(7), *list[0].OutputTokens)
	assert.Empty(t, pub.events)
}

func TestChatService_CreateMessageErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.CreateMessage(ctx, CreateMessageInput{Role: "robot", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.CreateMessage(ctx, CreateMessageInput{Role: models.RoleUser, InputTokens: int64p(-1)})
	assert.ErrorIs(t, err, ErrInvalidUsage)

	_, err = svc.CreateMessage(ctx, CreateMessageInput{ChatID: "missing", Role: models.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrChatNotFound)

	chats, err := svc.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestChatService_PublishFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &capturePublisher{err: errors.New("broker down")})

	msg, err := svc.CreateMessage(ctx, CreateMessageInput{Role: models.RoleUser, Content: "hello"})
	require.NoError(t, err)

	list, err := svc.ListMessages(ctx, msg.ChatID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestChatService_DeleteChat(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	msg, err := svc.CreateMessage(ctx, CreateMessageInput{Role: models.RoleUser, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChat(ctx, msg.ChatID))
	assert.ErrorIs(t, svc.DeleteChat(ctx, msg.ChatID), ErrChatNotFound)

	list, err := svc.ListMessages(ctx, msg.ChatID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestChatService_BlankTitleIsNull(t *testing.T) {
	svc := newService(t, nil)
	blank := "  "
	c, err := svc.CreateChat(context.Background(), &blank)
	require.NoError(t, err)
	assert.Nil(t, c.Title)
}

type recordingProvider struct {
	got      llm.Request
	deadline bool
}

func (p *recordingProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.got = req
	_, p.deadline = ctx.Deadline()
	return emptyStream{}, nil
}

type emptyStream struct{}

func (emptyStream) Next() bool        { return false }
func (emptyStream) Delta() string     { return "" }
func (emptyStream) Err() error        { return nil }
func (emptyStream) Usage() *llm.Usage { return nil }
func (emptyStream) Close() error      { return nil }

func TestCompletionService_Model(t *testing.T) {
	msgs := []llm.Message{{Role: models.RoleUser, Content: "hi"}}

	tests := []struct {
		name        string
		clientModel bool
		reqModel    string
		want        string
	}{
		{"fixed model ignores client", false, "openai/gpt-4o", "gemini-2.5-flash"},
		{"client model honored", true, "openai/gpt-4o", "openai/gpt-4o"},
		{"client model defaulted", true, "", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingProvider{}
			svc := NewCompletionService(p, "gemini-2.5-flash", tt.clientModel, 0)
			s, err := svc.Stream(context.Background(), llm.Request{Model: tt.reqModel, Messages: msgs})
			require.NoError(t, err)
			require.NoError(t, s.Close())
			assert.Equal(t, tt.want, p.got.Model)
			assert.False(t, p.deadline)
		})
	}
}

func TestCompletionService_Validation(t *testing.T) {
	p := &recordingProvider{}
	svc := NewCompletionService(p, "m", false, 0)

	_, err := svc.Stream(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, ErrInvalidMessages)

	_, err = svc.Stream(context.Background(), llm.Request{Messages: []llm.Message{{Role: "robot"}}})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCompletionService_Timeout(t *testing.T) {
	p := &recordingProvider{}
	svc := NewCompletionService(p, "m", false, time.Minute)
	s, err := svc.Stream(context.Background(), llm.Request{Messages: []llm.Message{{Role: models.RoleUser, Content: "x"}}})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, p.deadline)
}
