package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-chat/llm"
)

var ErrInvalidMessages = errors.New("Messages array is required")

// CompletionService 는 POST /chat 의 스트리밍 응답을 공급자에게 위임한다.
type CompletionService struct {
	provider     llm.Provider
	defaultModel string
	// clientModel 이 false 면 요청의 model 을 무시하고 defaultModel 만 쓴다.
	// (gemini 공급자는 OpenRouter 모델 id 를 알지 못한다.)
	clientModel bool
	timeout     time.Duration
}

// NewCompletionService builds the service. A timeout of zero leaves streams
// bounded only by the request context.
func NewCompletionService(provider llm.Provider, defaultModel string, clientModel bool, timeout time.Duration) *CompletionService {
	return &CompletionService{
		provider:     provider,
		defaultModel: defaultModel,
		clientModel:  clientModel,
		timeout:      timeout,
	}
}

// Stream validates the request and starts a provider stream. The caller
// must Close the stream.
func (s *CompletionService) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	if len(req.Messages) == 0 {
		return nil, ErrInvalidMessages
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			return nil, ErrInvalidRole
		}
	}
	if !s.clientModel || strings.TrimSpace(req.Model) == "" {
		req.Model = s.defaultModel
	}

	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	stream, err := s.provider.Stream(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &boundedStream{Stream: stream, cancel: cancel}, nil
}

type boundedStream struct {
	llm.Stream
	cancel context.CancelFunc
}

func (s *boundedStream) Close() error {
	err := s.Stream.Close()
	s.cancel()
	return err
}
