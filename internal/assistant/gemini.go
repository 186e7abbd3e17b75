package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiInstruction = "You are a friendly shop assistant answering WhatsApp customers. " +
	"Reply briefly in plain text suitable for a chat message. Reply in the language with code %s."

type textGenerator interface {
	GenerateText(ctx context.Context, instruction, prompt string) (string, error)
}

type genaiGenerator struct {
	client  *genai.Client
	modelID string
}

func (g *genaiGenerator) GenerateText(ctx context.Context, instruction, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.modelID)
	if strings.TrimSpace(instruction) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(instruction))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// GeminiFetcher implements Fetcher with a single-turn Gemini completion. It
// keeps no history, so the session key does not carry context here.
type GeminiFetcher struct {
	gen         textGenerator
	instruction string
	close       func() error
}

// NewGeminiFetcher creates a Gemini-backed fetcher.
func NewGeminiFetcher(ctx context.Context, apiKey, modelID string) (*GeminiFetcher, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}
	return &GeminiFetcher{
		gen:         &genaiGenerator{client: client, modelID: modelID},
		instruction: defaultGeminiInstruction,
		close:       client.Close,
	}, nil
}

// FetchReply asks the model for a reply to the utterance.
func (f *GeminiFetcher) FetchReply(ctx context.Context, _ string, utterance, languageCode string) (RawReply, error) {
	if strings.TrimSpace(utterance) == "" {
		return RawReply{}, nil
	}
	instruction := f.instruction
	if strings.Contains(instruction, "%s") {
		instruction = fmt.Sprintf(instruction, languageCode)
	}

	text, err := f.gen.GenerateText(ctx, instruction, utterance)
	if err != nil {
		return RawReply{}, fmt.Errorf("%w: gemini completion: %w", ErrCollaboratorUnavailable, err)
	}
	return TextReply(strings.TrimSpace(text)), nil
}

// Close releases the underlying client.
func (f *GeminiFetcher) Close() error {
	if f.close != nil {
		return f.close()
	}
	return nil
}
