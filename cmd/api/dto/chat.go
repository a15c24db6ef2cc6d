package dto

import "ai-chat/llm"

type CreateChatRequestDTO struct {
	Title *string `json:"title" example:"Trip planning"`
}

type CreateMessageRequestDTO struct {
	Content      string `json:"content" example:"How do goroutines work?"`
	Role         string `json:"role" binding:"required" example:"user"`
	InputTokens  *int64 `json:"inputTokens" example:"12"`
	OutputTokens *int64 `json:"outputTokens" example:"0"`
	// ChatID 가 비어 있으면 채팅을 먼저 만든다.
	ChatID string `json:"chatId" example:"6f1c2d9e-3f0b-4f55-9a59-0d7c5b7d6a10"`
}

type CompletionRequestDTO struct {
	Messages     []llm.Message `json:"messages"`
	Model        string        `json:"model" example:"gemini-2.5-flash"`
	Instructions string        `json:"instructions"`
}
