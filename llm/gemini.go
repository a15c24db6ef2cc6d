package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"ai-chat/models"
)

// contentStreamer is the slice of *genai.Models used here; tests replace it.
type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiProvider streams completions from the Gemini API. The server side
// /chat endpoint uses it.
type GeminiProvider struct {
	models contentStreamer
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{models: client.Models}, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	system := make([]string, 0, 1)
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		system = append(system, instructions)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			if c := strings.TrimSpace(m.Content); c != "" {
				system = append(system, c)
			}
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, ErrNoMessages
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	ctx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(p.models.GenerateContentStream(ctx, req.Model, contents, cfg))
	return &geminiStream{next: next, stop: stop, cancel: cancel}, nil
}

type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	cancel  context.CancelFunc
	current string
	usage   *Usage
	err     error
	done    bool
}

func (s *geminiStream) Next() bool {
	for !s.done {
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			break
		}
		if err != nil {
			s.err = err
			s.done = true
			break
		}
		if resp == nil {
			continue
		}
		if u := resp.UsageMetadata; u != nil {
			s.usage = &Usage{
				InputTokens:  int64(u.PromptTokenCount),
				OutputTokens: int64(u.CandidatesTokenCount),
			}
		}
		if text := visibleText(resp); text != "" {
			s.current = text
			return true
		}
	}
	s.current = ""
	return false
}

func (s *geminiStream) Delta() string { return s.current }
func (s *geminiStream) Err() error    { return s.err }
func (s *geminiStream) Usage() *Usage { return s.usage }

func (s *geminiStream) Close() error {
	s.cancel()
	s.stop()
	s.done = true
	return nil
}

// visibleText joins the non-thought text parts of the first candidate.
func visibleText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

var _ Provider = (*GeminiProvider)(nil)
