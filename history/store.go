// Package history is the client-side view of persisted chats. Reads are
// cached until a write through the same Store invalidates them.
package history

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"ai-chat/apiclient"
	"ai-chat/chat"
	"ai-chat/models"
)

// API is the part of the persistence API the store uses.
type API interface {
	CreateChat(ctx context.Context, title *string) (models.Chat, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	CreateMessage(ctx context.Context, in apiclient.CreateMessageRequest) (models.Message, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
}

const chatsKey = "chats"

func messagesKey(chatID string) string { return "messages:" + chatID }

type Store struct {
	api   API
	group singleflight.Group

	mu       sync.Mutex
	chats    []models.Chat
	messages map[string][]models.Message
	// gens counts writes per cache key; epoch counts full invalidations.
	// A fetch only fills the cache if neither moved while it ran.
	gens  map[string]uint64
	epoch uint64
}

func NewStore(api API) *Store {
	return &Store{api: api, messages: map[string][]models.Message{}, gens: map[string]uint64{}}
}

// genLocked returns the current write stamp of key. Callers hold mu.
func (s *Store) genLocked(key string) uint64 { return s.gens[key] + s.epoch }

// bumpLocked marks key as written. In-flight fetches for it will not be
// cached and later callers will not join them. Callers hold mu.
func (s *Store) bumpLocked(key string) {
	s.gens[key]++
	s.group.Forget(key)
}

// ListChats returns all chats. Concurrent callers share one request.
func (s *Store) ListChats(ctx context.Context) ([]models.Chat, error) {
	s.mu.Lock()
	if s.chats != nil {
		out := append([]models.Chat(nil), s.chats...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(chatsKey, func() (any, error) {
		s.mu.Lock()
		gen := s.genLocked(chatsKey)
		s.mu.Unlock()

		chats, err := s.api.ListChats(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.genLocked(chatsKey) == gen {
			s.chats = chats
		}
		s.mu.Unlock()
		return chats, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]models.Chat(nil), v.([]models.Chat)...), nil
}

// Messages returns a chat's messages, newest first.
func (s *Store) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	if msgs, ok := s.messages[chatID]; ok {
		out := append([]models.Message(nil), msgs...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	key := messagesKey(chatID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		gen := s.genLocked(key)
		s.mu.Unlock()

		msgs, err := s.api.Messages(ctx, chatID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.genLocked(key) == gen {
			s.messages[chatID] = msgs
		}
		s.mu.Unlock()
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]models.Message(nil), v.([]models.Message)...), nil
}

// Invalidate drops every cached read.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = nil
	s.messages = map[string][]models.Message{}
	s.epoch++
	s.group.Forget(chatsKey)
	for key := range s.gens {
		s.group.Forget(key)
	}
}

func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.api.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	s.mu.Lock()
	s.chats = nil
	delete(s.messages, chatID)
	s.bumpLocked(chatsKey)
	s.bumpLocked(messagesKey(chatID))
	s.mu.Unlock()
	return nil
}

// CreateChat and CreateMessage make the store a chat.Persister; the session
// is their only caller.
func (s *Store) CreateChat(ctx context.Context) (models.Chat, error) {
	created, err := s.api.CreateChat(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	s.mu.Lock()
	s.chats = nil
	s.bumpLocked(chatsKey)
	s.mu.Unlock()
	return created, nil
}

func (s *Store) CreateMessage(ctx context.Context, m chat.NewMessage) (models.Message, error) {
	saved, err := s.api.CreateMessage(ctx, apiclient.CreateMessageRequest{
		Content:      m.Content,
		Role:         m.Role,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		ChatID:       m.ChatID,
	})
	if err != nil {
		return models.Message{}, err
	}
	s.mu.Lock()
	delete(s.messages, saved.ChatID)
	s.bumpLocked(messagesKey(saved.ChatID))
	if m.ChatID == "" {
		// the API created a chat implicitly
		s.chats = nil
		s.bumpLocked(chatsKey)
	}
	s.mu.Unlock()
	return saved, nil
}

var _ chat.Persister = (*Store)(nil)
