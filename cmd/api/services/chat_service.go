package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-chat/eventbus"
	"ai-chat/events"
	"ai-chat/logger"
	"ai-chat/models"
	"ai-chat/repositories"
)

var (
	ErrChatNotFound = errors.New("chat_not_found")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidUsage = errors.New("invalid_token_usage")
)

// ChatService 는 채팅/메시지 저장을 담당한다. 저장소 구현(mongo, sqlite)과 무관하다.
type ChatService struct {
	chats     repositories.ChatStore
	messages  repositories.MessageStore
	publisher eventbus.Publisher

	now   func() time.Time
	newID func() string
}

// NewChatService builds the service. publisher may be nil, in which case no
// title events are published.
func NewChatService(chats repositories.ChatStore, messages repositories.MessageStore, publisher eventbus.Publisher) *ChatService {
	return &ChatService{
		chats:     chats,
		messages:  messages,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *ChatService) CreateChat(ctx context.Context, title *string) (models.Chat, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		title = nil
	}
	now := s.now()
	c := models.Chat{ID: s.newID(), Title: title, CreatedAt: now, UpdatedAt: now}
	if err := s.chats.Insert(ctx, &c); err != nil {
		return models.Chat{}, fmt.Errorf("insert chat: %w", err)
	}
	return c, nil
}

func (s *ChatService) ListChats(ctx context.Context) ([]models.Chat, error) {
	list, err := s.chats.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Chat{}
	}
	return list, nil
}

// DeleteChat removes the chat and its messages. Messages go first since the
// mongo store has no cascading delete.
func (s *ChatService) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.chats.GetByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	if err := s.messages.DeleteByChatID(ctx, id); err != nil {
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	if err := s.chats.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

type CreateMessageInput struct {
	ChatID       string
	Role         models.Role
	Content      string
	InputTokens  *int64
	OutputTokens *int64
}

// CreateMessage stores one message. Without a ChatID a chat is created
// first and a title request is published for it once the message is stored.
func (s *ChatService) CreateMessage(ctx context.Context, in CreateMessageInput) (models.Message, error) {
	if !in.Role.Valid() {
		return models.Message{}, ErrInvalidRole
	}
	if negative(in.InputTokens) || negative(in.OutputTokens) {
		return models.Message{}, ErrInvalidUsage
	}

	chatID := in.ChatID
	implicit := chatID == ""
	if implicit {
		c, err := s.CreateChat(ctx, nil)
		if err != nil {
			return models.Message{}, fmt.Errorf("unable to create chat: %w", err)
		}
		chatID = c.ID
	} else if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Message{}, ErrChatNotFound
		}
		return models.Message{}, err
	}

	m := models.Message{
		ID:           s.newID(),
		ChatID:       chatID,
		Role:         in.Role,
		Content:      in.Content,
		InputTokens:  in.InputTokens,
		OutputTokens: in.OutputTokens,
		CreatedAt:    s.now(),
	}
	if err := s.messages.Insert(ctx, &m); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if implicit && in.Role == models.RoleUser {
		s.requestTitle(ctx, chatID)
	}
	return m, nil
}

// ListMessages returns the chat's messages newest first. An unknown chat
// yields an empty list.
func (s *ChatService) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	list, err := s.messages.ListByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Message{}
	}
	return list, nil
}

// requestTitle 는 실패해도 메시지 저장을 되돌리지 않는다.
func (s *ChatService) requestTitle(ctx context.Context, chatID string) {
	if s.publisher == nil {
		return
	}
	evt, err := eventbus.NewJSONEvent("", events.NewChatTitleRequested(chatID, "api"), 0)
	if err == nil {
		err = s.publisher.Publish(ctx, eventbus.TopicChatEvents.Base(), evt)
	}
	if err != nil {
		logger.ErrorWithFields("publish chat.title_requested failed", logger.Fields{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

func negative(v *int64) bool { return v != nil && *v < 0 }
