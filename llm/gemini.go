package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/notelm/pkg/errors"
	"google.golang.org/api/option"
)

// Gemini implements Provider using the Google generative AI SDK.
type Gemini struct {
	cfg *Config
}

// NewGemini creates a Gemini chat provider.
func NewGemini(cfg *Config) *Gemini {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &Gemini{cfg: cfg}
}

// Chat sends one system + user prompt pair and returns the completion.
// The genai client is connection-scoped, so it is created per call.
func (p *Gemini) Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = p.cfg.Model
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.cfg.APIKey))
	if err != nil {
		return "", errors.ExternalServicef("gemini chat: client: %v", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(model)
	if systemPrompt != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", errors.ExternalServicef("gemini chat: %v", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", errors.ExternalServicef("gemini chat: empty response")
	}
	return b.String(), nil
}

var _ Provider = (*Gemini)(nil)
