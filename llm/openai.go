package llm

import (
	"context"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// OpenAI implements Provider using the official SDK.
type OpenAI struct {
	cfg    *Config
	client openaisdk.Client
}

// NewOpenAI creates an OpenAI chat provider.
func NewOpenAI(cfg *Config) *OpenAI {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{cfg: cfg, client: openaisdk.NewClient(opts...)}
}

// Chat sends one system + user prompt pair and returns the completion.
func (p *OpenAI) Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = p.cfg.Model
	}

	messages := []openaisdk.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(userPrompt))

	resp, err := p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", errors.ExternalServicef("openai chat: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.ExternalServicef("openai chat: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAI)(nil)
