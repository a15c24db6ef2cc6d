package titler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"
)

const maxTitleRunes = 60

const systemInstruction = `
You name chat conversations.
Given the first message a user sent, reply with a short title for the conversation.
The response MUST be a valid JSON object with two keys:

1. title: 2 to 6 words, no trailing punctuation, written in the language of the message.
2. error: null, or a short reason when no meaningful title can be derived.

You MUST NOT wrap the JSON output in a markdown code block.
`

type Result struct {
	Title        string
	ModelName    string
	InputTokens  int64
	OutputTokens int64
	Latency      time.Duration
}

// Generator derives a chat title from the opening user message.
type Generator interface {
	GenerateTitle(ctx context.Context, firstMessage string) (Result, error)
}

// ErrNoTitle is returned when the model declines to name the chat.
var ErrNoTitle = errors.New("model produced no title")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiGenerator struct {
	models contentGenerator
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{models: client.Models, model: model}, nil
}

type titleResponse struct {
	Title string  `json:"title"`
	Error *string `json:"error"`
}

func (g *GeminiGenerator) GenerateTitle(ctx context.Context, firstMessage string) (Result, error) {
	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(firstMessage), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Result{}, err
	}

	var parsed titleResponse
	if err := json.Unmarshal([]byte(stripFence(resp.Text())), &parsed); err != nil {
		return Result{}, fmt.Errorf("decode title response: %w", err)
	}
	if parsed.Error != nil && *parsed.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrNoTitle, *parsed.Error)
	}
	title := NormalizeTitle(parsed.Title)
	if title == "" {
		return Result{}, ErrNoTitle
	}

	out := Result{Title: title, ModelName: g.model, Latency: time.Since(start)}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int64(u.PromptTokenCount)
		out.OutputTokens = int64(u.CandidatesTokenCount)
	}
	return out, nil
}

// stripFence removes a ```json fence some models add despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// NormalizeTitle collapses whitespace, drops wrapping quotes and trailing
// punctuation, and caps the length.
func NormalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, `"'`+"`")
	s = strings.TrimRight(s, ".!?。 ")
	if utf8.RuneCountInString(s) > maxTitleRunes {
		r := []rune(s)
		s = strings.TrimSpace(string(r[:maxTitleRunes-1])) + "…"
	}
	return s
}
