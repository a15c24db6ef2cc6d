package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single turn entry of a chat.
// Collection: messages
type Message struct {
	ID           string    `bson:"_id" json:"id"`
	ChatID       string    `bson:"chat_id" json:"chatId"`
	Role         Role      `bson:"role" json:"role"`
	Content      string    `bson:"content" json:"content"`
	InputTokens  *int64    `bson:"input_tokens,omitempty" json:"inputTokens"`
	OutputTokens *int64    `bson:"output_tokens,omitempty" json:"outputTokens"`
	CreatedAt    time.Time `bson:"created" json:"createdAt"`
}
