// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/article-engine/pkg/types"
)

// OpenAIModel calls the OpenAI chat completions API with fixed sampling settings.
type OpenAIModel struct {
	client openai.Client
	cfg    types.LMConfig
}

// NewOpenAIModel builds a model for one role. The client options carry the
// API key, base URL, retry budget, and timeout from ai.
func NewOpenAIModel(ai types.AIConfig, cfg types.LMConfig) *OpenAIModel {
	opts := []option.RequestOption{
		option.WithAPIKey(ai.APIKey),
		option.WithMaxRetries(ai.MaxRetries),
	}
	if ai.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(ai.BaseURL))
	}
	if ai.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(ai.Timeout))
	}
	return &OpenAIModel{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Name returns the model identifier.
func (m *OpenAIModel) Name() string { return m.cfg.Model }

// Complete sends one chat completion request.
func (m *OpenAIModel) Complete(ctx context.Context, system, prompt string) (Completion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.cfg.Model),
		Messages:    messages,
		Temperature: openai.Float(m.cfg.Temperature),
		TopP:        openai.Float(m.cfg.TopP),
	}
	if m.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(m.cfg.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response from openai")
	}

	return Completion{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// NewOpenAIConfigs builds and tracks an OpenAI model for every role.
func NewOpenAIConfigs(cfg types.LMRolesConfig) Configs {
	return NewConfigs(
		NewOpenAIModel(cfg.AIConfig, cfg.ConvSimulator),
		NewOpenAIModel(cfg.AIConfig, cfg.QuestionAsker),
		NewOpenAIModel(cfg.AIConfig, cfg.OutlineGen),
		NewOpenAIModel(cfg.AIConfig, cfg.ArticleGen),
		NewOpenAIModel(cfg.AIConfig, cfg.ArticlePolish),
	)
}

// Providers accepted by NewProviderConfigs.
const (
	ProviderOpenAI    = types.ProviderOpenAI
	ProviderAnthropic = types.ProviderAnthropic
)

// ErrMissingAPIKey is returned when the selected provider has no API key.
var ErrMissingAPIKey = errors.New("missing API key")

// NewProviderConfigs builds the role models for cfg.Provider. An empty
// provider means OpenAI.
func NewProviderConfigs(cfg types.LMRolesConfig) (Configs, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return Configs{}, fmt.Errorf("%w: openai provider needs OPENAI_API_KEY", ErrMissingAPIKey)
		}
		return NewOpenAIConfigs(cfg), nil
	case ProviderAnthropic:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return Configs{}, fmt.Errorf("%w: anthropic provider needs ANTHROPIC_API_KEY", ErrMissingAPIKey)
		}
		return NewAnthropicConfigs(cfg), nil
	default:
		return Configs{}, fmt.Errorf("unknown lm provider %q: use %s or %s", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
}
