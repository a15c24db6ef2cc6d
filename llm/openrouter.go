package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"ai-chat/models"
)

const OpenRouterDefaultURL = "https://openrouter.ai/api/v1"

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	// HTTPClient is used for the streaming calls; it must not carry a
	// whole-request timeout.
	HTTPClient *http.Client
	Referer    string
	Title      string
}

// OpenRouterProvider streams chat completions from OpenRouter's
// OpenAI-compatible endpoint.
type OpenRouterProvider struct {
	client openai.Client
}

func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = OpenRouterDefaultURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenRouterProvider{client: openai.NewClient(opts...)}, nil
}

func (p *OpenRouterProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	// transport and status errors are already known before the first chunk
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return &openRouterStream{stream: stream}, nil
}

type openRouterStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
	usage   *Usage
}

func (s *openRouterStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			s.usage = &Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.current = chunk.Choices[0].Delta.Content
		return true
	}
	s.current = ""
	return false
}

func (s *openRouterStream) Delta() string { return s.current }
func (s *openRouterStream) Err() error    { return s.stream.Err() }
func (s *openRouterStream) Usage() *Usage { return s.usage }
func (s *openRouterStream) Close() error  { return s.stream.Close() }

var _ Provider = (*OpenRouterProvider)(nil)
