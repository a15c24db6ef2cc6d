package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// ChatTitleRequested 는 제목 없는 채팅에 첫 메시지가 저장되었을 때 발행된다.
	ChatTitleRequested EventType = "chat.title_requested"
	ChatTitled         EventType = "chat.titled"
)

// BaseEvent 모든 이벤트의 공통 필드
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "api", "titler" 등
	Version   string    `json:"version"`
}

func newBase(t EventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Source:    source,
		Version:   "1.0",
	}
}

type ChatTitleRequestedEvent struct {
	BaseEvent
	ChatID string `json:"chat_id"`
}

func NewChatTitleRequested(chatID, source string) ChatTitleRequestedEvent {
	return ChatTitleRequestedEvent{BaseEvent: newBase(ChatTitleRequested, source), ChatID: chatID}
}

type ChatTitledEvent struct {
	BaseEvent
	ChatID    string `json:"chat_id"`
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
}

func NewChatTitled(chatID, title, modelName, source string) ChatTitledEvent {
	return ChatTitledEvent{
		BaseEvent: newBase(ChatTitled, source),
		ChatID:    chatID,
		Title:     title,
		ModelName: modelName,
	}
}

// PeekType 은 payload 의 top-level type 필드만 읽는다.
func PeekType(payload []byte) (EventType, error) {
	var peek struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return "", fmt.Errorf("peek event type: %w", err)
	}
	return peek.Type, nil
}
