package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiModel is the model used for transcription.
const GeminiModel = "gemini-2.5-flash"

const transcribePrompt = `Transcribe this voice message exactly as spoken.
Return ONLY the transcript as plain text, with no quotes, labels or commentary.
If nothing intelligible is said, return an empty response.`

// ContentGenerator is the subset of *genai.Models used for transcription.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiTranscriber transcribes audio with Gemini.
type GeminiTranscriber struct {
	generator ContentGenerator
}

// NewGeminiTranscriber creates a transcriber backed by the Gemini API.
func NewGeminiTranscriber(ctx context.Context, apiKey string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTranscriber{generator: client.Models}, nil
}

// NewGeminiTranscriberWithGenerator creates a transcriber with a custom generator.
func NewGeminiTranscriberWithGenerator(g ContentGenerator) *GeminiTranscriber {
	return &GeminiTranscriber{generator: g}
}

// Transcribe implements Transcriber.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", errors.New("audio data is required")
	}

	resp, err := g.generator.GenerateContent(ctx, GeminiModel, []*genai.Content{
		{
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: audio}},
				{Text: transcribePrompt},
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyTranscript
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.Trim(strings.TrimSpace(sb.String()), `"`)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
