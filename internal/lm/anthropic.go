// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/article-engine/pkg/types"
)

// defaultAnthropicMaxTokens is used when a role leaves MaxTokens unset; the
// Messages API requires a value.
const defaultAnthropicMaxTokens = 1024

// AnthropicModel calls the Anthropic Messages API.
type AnthropicModel struct {
	client anthropic.Client
	cfg    types.LMConfig
}

// NewAnthropicModel builds a model for one role.
func NewAnthropicModel(ai types.AIConfig, cfg types.LMConfig) *AnthropicModel {
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
	return &AnthropicModel{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

// Name returns the model identifier.
func (m *AnthropicModel) Name() string { return m.cfg.Model }

// Complete sends one message request. Only temperature is forwarded; the
// API rejects requests that set both temperature and top_p on newer models.
func (m *AnthropicModel) Complete(ctx context.Context, system, prompt string) (Completion, error) {
	maxTokens := int64(m.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(m.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return Completion{}, fmt.Errorf("no response from anthropic")
	}

	return Completion{
		Text:             text,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// NewAnthropicConfigs builds and tracks an Anthropic model for every role.
func NewAnthropicConfigs(cfg types.LMRolesConfig) Configs {
	return NewConfigs(
		NewAnthropicModel(cfg.AIConfig, cfg.ConvSimulator),
		NewAnthropicModel(cfg.AIConfig, cfg.QuestionAsker),
		NewAnthropicModel(cfg.AIConfig, cfg.OutlineGen),
		NewAnthropicModel(cfg.AIConfig, cfg.ArticleGen),
		NewAnthropicModel(cfg.AIConfig, cfg.ArticlePolish),
	)
}
