package history

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-chat/apiclient"
	"ai-chat/chat"
	"ai-chat/models"
)

type fakeAPI struct {
	mu           sync.Mutex
	listCalls    int
	messageCalls int
	chats        []models.Chat
	messages     map[string][]models.Message
	listErr      error
}

func (f *fakeAPI) CreateChat(ctx context.Context, title *string) (models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := models.Chat{ID: "new-chat"}
	f.chats = append(f.chats, c)
	return c, nil
}

func (f *fakeAPI) ListChats(ctx context.Context) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Chat(nil), f.chats...), nil
}

func (f *fakeAPI) DeleteChat(ctx context.Context, chatID string) error { return nil }

func (f *fakeAPI) CreateMessage(ctx context.Context, in apiclient.CreateMessageRequest) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := models.Message{ID: "m", ChatID: in.ChatID, Role: in.Role, Content: in.Content}
	f.messages[in.ChatID] = append([]models.Message{m}, f.messages[in.ChatID]...)
	return m, nil
}

func (f *fakeAPI) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	return append([]models.Message(nil), f.messages[chatID]...), nil
}

func TestStore_CachesReads(t *testing.T) {
	api := &fakeAPI{chats: []models.Chat{{ID: "c1"}}, messages: map[string][]models.Message{}}
	s := NewStore(api)

	for i := 0; i < 3; i++ {
		chats, err := s.ListChats(context.Background())
		require.NoError(t, err)
		assert.Len(t, chats, 1)
	}
	assert.Equal(t, 1, api.listCalls)

	_, err := s.Messages(context.Background(), "c1")
	require.NoError(t, err)
	_, err = s.Messages(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, api.messageCalls)
}

func TestStore_WriteInvalidates(t *testing.T) {
	api := &fakeAPI{chats: []models.Chat{{ID: "c1"}}, messages: map[string][]models.Message{}}
	s := NewStore(api)
	ctx := context.Background()

	msgs, err := s.Messages(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = s.CreateMessage(ctx, chat.NewMessage{ChatID: "c1", Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)

	msgs, err = s.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, 2, api.messageCalls)

	_, err = s.ListChats(ctx)
	require.NoError(t, err)
	_, err = s.CreateChat(ctx)
	require.NoError(t, err)
	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
	assert.Equal(t, 2, api.listCalls)
}

func TestStore_ErrorsAreNotCached(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("offline"), messages: map[string][]models.Message{}}
	s := NewStore(api)

	_, err := s.ListChats(context.Background())
	assert.Error(t, err)

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()

	_, err = s.ListChats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, api.listCalls)
}

func TestStore_ReturnsCopies(t *testing.T) {
	api := &fakeAPI{chats: []models.Chat{{ID: "c1"}}, messages: map[string][]models.Message{}}
	s := NewStore(api)

	chats, _ := s.ListChats(context.Background())
	chats[0].ID = "mutated"

	again, _ := s.ListChats(context.Background())
	assert.Equal(t, "c1", again[0].ID)
}

// slowAPI takes its snapshot, then waits on release before answering.
type slowAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newSlowAPI(f *fakeAPI) *slowAPI {
	return &slowAPI{fakeAPI: f, started: make(chan struct{}), release: make(chan struct{})}
}

func (s *slowAPI) block() {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-s.release
	}
}

func (s *slowAPI) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	msgs, err := s.fakeAPI.Messages(ctx, chatID)
	s.block()
	return msgs, err
}

func (s *slowAPI) ListChats(ctx context.Context) ([]models.Chat, error) {
	chats, err := s.fakeAPI.ListChats(ctx)
	s.block()
	return chats, err
}

func TestStore_ReadInFlightDuringWriteIsNotCached(t *testing.T) {
	api := newSlowAPI(&fakeAPI{chats: []models.Chat{{ID: "c1"}}, messages: map[string][]models.Message{}})
	s := NewStore(api)
	ctx := context.Background()

	done := make(chan []models.Message)
	go func() {
		msgs, _ := s.Messages(ctx, "c1")
		done <- msgs
	}()
	<-api.started

	_, err := s.CreateMessage(ctx, chat.NewMessage{ChatID: "c1", Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)

	close(api.release)
	assert.Empty(t, <-done)

	msgs, err := s.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestStore_ChatListInFlightDuringCreateIsNotCached(t *testing.T) {
	api := newSlowAPI(&fakeAPI{chats: []models.Chat{{ID: "c1"}}, messages: map[string][]models.Message{}})
	s := NewStore(api)
	ctx := context.Background()

	done := make(chan []models.Chat)
	go func() {
		chats, _ := s.ListChats(ctx)
		done <- chats
	}()
	<-api.started

	_, err := s.CreateChat(ctx)
	require.NoError(t, err)

	close(api.release)
	assert.Len(t, <-done, 1)

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}
