// Package titler names untitled chats from their first user message. It
// consumes chat.title_requested events published by the API server.
package titler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-chat/eventbus"
	"ai-chat/events"
	"ai-chat/logger"
	"ai-chat/models"
	"ai-chat/repositories"
)

type Reserver interface {
	WaitAndReserve(ctx context.Context) (bool, error)
}

type Service struct {
	chats     repositories.ChatStore
	messages  repositories.MessageStore
	generator Generator
	quota     Reserver
	publisher eventbus.Publisher
}

// NewService wires the title pipeline. quota and publisher may be nil.
func NewService(chats repositories.ChatStore, messages repositories.MessageStore, generator Generator, quota Reserver, publisher eventbus.Publisher) *Service {
	return &Service{
		chats:     chats,
		messages:  messages,
		generator: generator,
		quota:     quota,
		publisher: publisher,
	}
}

// HandleTitleRequested titles the chat unless it is gone, already titled,
// or has no user message yet. A returned error schedules a retry.
func (s *Service) HandleTitleRequested(ctx context.Context, evt events.ChatTitleRequestedEvent) error {
	fields := logger.Fields{"chat_id": evt.ChatID, "event_id": evt.ID}

	c, err := s.chats.GetByID(ctx, evt.ChatID)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.InfoWithFields("chat deleted before titling, skipping", fields)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load chat %s: %w", evt.ChatID, err)
	}
	if c.Title != nil && strings.TrimSpace(*c.Title) != "" {
		return nil
	}

	first, err := s.messages.FirstByChatID(ctx, evt.ChatID, models.RoleUser)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.InfoWithFields("chat has no user message, skipping", fields)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load first message of %s: %w", evt.ChatID, err)
	}

	if s.quota != nil {
		allowed, err := s.quota.WaitAndReserve(ctx)
		if err != nil {
			return err
		}
		if !allowed {
			logger.WarnWithFields("title daily quota exceeded, skipping", fields)
			return nil
		}
	}

	res, err := s.generator.GenerateTitle(ctx, first.Content)
	if errors.Is(err, ErrNoTitle) {
		logger.WarnWithFields("model declined to title chat", logger.Fields{"chat_id": evt.ChatID, "error": err.Error()})
		return nil
	}
	if err != nil {
		return fmt.Errorf("generate title for %s: %w", evt.ChatID, err)
	}

	if err := s.chats.UpdateTitle(ctx, evt.ChatID, res.Title); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("save title for %s: %w", evt.ChatID, err)
	}

	logger.InfoWithFields("chat titled", logger.Fields{
		"chat_id":       evt.ChatID,
		"model_name":    res.ModelName,
		"input_tokens":  res.InputTokens,
		"output_tokens": res.OutputTokens,
		"latency_ms":    res.Latency.Milliseconds(),
	})

	if s.publisher == nil {
		return nil
	}
	out, err := eventbus.NewJSONEvent("", events.NewChatTitled(evt.ChatID, res.Title, res.ModelName, "titler"), 0)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, eventbus.TopicChatEvents.Base(), out); err != nil {
		// 제목은 이미 저장됐으므로 재시도하지 않는다.
		logger.ErrorWithFields("publish chat.titled failed", logger.Fields{"chat_id": evt.ChatID, "error": err.Error()})
	}
	return nil
}

// Handle dispatches a raw bus event by its type. Unknown types are ignored.
func (s *Service) Handle(ctx context.Context, evt eventbus.Event) error {
	typ, err := events.PeekType(evt.Payload)
	if err != nil {
		return err
	}
	switch typ {
	case events.ChatTitleRequested:
		v, err := eventbus.DecodeJSON[events.ChatTitleRequestedEvent](evt)
		if err != nil {
			return err
		}
		return s.HandleTitleRequested(ctx, v)
	default:
		return nil
	}
}
