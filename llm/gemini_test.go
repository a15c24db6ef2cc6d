package llm

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ai-chat/models"
)

type stubStreamer struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	responses   []*genai.GenerateContentResponse
	err         error
}

func (s *stubStreamer) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	s.gotModel, s.gotContents, s.gotConfig = model, contents, cfg
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range s.responses {
			if !yield(r, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGeminiProvider_Stream(t *testing.T) {
	last := textResponse(" there")
	last.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 2}
	stub := &stubStreamer{responses: []*genai.GenerateContentResponse{textResponse("Hi"), last}}
	p := &GeminiProvider{models: stub}

	s, err := p.Stream(context.Background(), Request{
		Model:        "gemini-2.5-flash",
		Instructions: "be brief",
		Messages: []Message{
			{Role: models.RoleUser, Content: "Hello"},
			{Role: models.RoleAssistant, Content: "Hey"},
			{Role: models.RoleUser, Content: "How are you"},
		},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Hi", " there"}, collect(t, s))
	assert.NoError(t, s.Err())
	assert.Equal(t, &Usage{InputTokens: 5, OutputTokens: 2}, s.Usage())

	assert.Equal(t, "gemini-2.5-flash", stub.gotModel)
	require.Len(t, stub.gotContents, 3)
	assert.Equal(t, genai.RoleModel, stub.gotContents[1].Role)
	require.NotNil(t, stub.gotConfig.SystemInstruction)
	assert.Equal(t, "be brief", stub.gotConfig.SystemInstruction.Parts[0].Text)
}

func TestGeminiProvider_StreamError(t *testing.T) {
	stub := &stubStreamer{responses: []*genai.GenerateContentResponse{textResponse("Hel")}, err: errors.New("quota exceeded")}
	s, err := (&GeminiProvider{models: stub}).Stream(context.Background(), Request{
		Model: "m", Messages: []Message{{Role: models.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Hel"}, collect(t, s))
	assert.EqualError(t, s.Err(), "quota exceeded")
	assert.Nil(t, s.Usage())
}

func TestGeminiProvider_OnlySystemMessages(t *testing.T) {
	_, err := (&GeminiProvider{models: &stubStreamer{}}).Stream(context.Background(), Request{
		Model: "m", Messages: []Message{{Role: models.RoleSystem, Content: "x"}},
	})
	assert.ErrorIs(t, err, ErrNoMessages)
}
