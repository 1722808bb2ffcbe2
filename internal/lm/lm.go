// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lm wraps the language models used by each pipeline stage. Stages
// depend on the Model interface so tests can supply canned completions.
package lm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Role names, used as keys in usage reports and call history.
const (
	RoleConvSimulator = "conv_simulator_lm"
	RoleQuestionAsker = "question_asker_lm"
	RoleOutlineGen    = "outline_gen_lm"
	RoleArticleGen    = "article_gen_lm"
	RoleArticlePolish = "article_polish_lm"
)

// Completion is the text and token accounting of one model call.
type Completion struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Model produces a completion for a system instruction and a user prompt.
type Model interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (Completion, error)
}

// Usage aggregates token counts for one role.
type Usage struct {
	Model            string `json:"model" yaml:"model"`
	Calls            int    `json:"calls" yaml:"calls"`
	PromptTokens     int64  `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens" yaml:"completion_tokens"`
}

// Call records one model invocation.
type Call struct {
	Role             string        `json:"role"`
	Model            string        `json:"model"`
	PromptTokens     int64         `json:"prompt_tokens"`
	CompletionTokens int64         `json:"completion_tokens"`
	Duration         time.Duration `json:"duration_ns"`
	Error            string        `json:"error,omitempty"`
}

// Tracked decorates a Model with per-role call history. It is safe for
// concurrent use.
type Tracked struct {
	role  string
	model Model

	mu      sync.Mutex
	history []Call
}

// Track wraps m so that every call is recorded under role.
func Track(role string, m Model) *Tracked {
	return &Tracked{role: role, model: m}
}

// Role returns the role this model serves.
func (t *Tracked) Role() string { return t.role }

// Name returns the underlying model name.
func (t *Tracked) Name() string { return t.model.Name() }

// Complete forwards to the underlying model and records the call.
func (t *Tracked) Complete(ctx context.Context, system, prompt string) (Completion, error) {
	start := time.Now()
	c, err := t.model.Complete(ctx, system, prompt)

	call := Call{
		Role:             t.role,
		Model:            t.model.Name(),
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
		Duration:         time.Since(start),
	}
	if err != nil {
		call.Error = err.Error()
	}

	t.mu.Lock()
	t.history = append(t.history, call)
	t.mu.Unlock()

	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", t.role, err)
	}
	return c, nil
}

// History returns a copy of the recorded calls.
func (t *Tracked) History() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.history))
	copy(out, t.history)
	return out
}

// Usage sums the recorded calls.
func (t *Tracked) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := Usage{Model: t.model.Name(), Calls: len(t.history)}
	for _, c := range t.history {
		u.PromptTokens += c.PromptTokens
		u.CompletionTokens += c.CompletionTokens
	}
	return u
}

// Reset clears the call history.
func (t *Tracked) Reset() {
	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()
}

// Configs assigns a model to each pipeline role.
type Configs struct {
	ConvSimulator *Tracked
	QuestionAsker *Tracked
	OutlineGen    *Tracked
	ArticleGen    *Tracked
	ArticlePolish *Tracked
}

// NewConfigs tracks each model under its role name.
func NewConfigs(convSimulator, questionAsker, outlineGen, articleGen, articlePolish Model) Configs {
	return Configs{
		ConvSimulator: Track(RoleConvSimulator, convSimulator),
		QuestionAsker: Track(RoleQuestionAsker, questionAsker),
		OutlineGen:    Track(RoleOutlineGen, outlineGen),
		ArticleGen:    Track(RoleArticleGen, articleGen),
		ArticlePolish: Track(RoleArticlePolish, articlePolish),
	}
}

// All returns the tracked models in pipeline order.
func (c Configs) All() []*Tracked {
	return []*Tracked{c.ConvSimulator, c.QuestionAsker, c.OutlineGen, c.ArticleGen, c.ArticlePolish}
}

// Validate reports the first role with no model assigned.
func (c Configs) Validate() error {
	roles := []string{RoleConvSimulator, RoleQuestionAsker, RoleOutlineGen, RoleArticleGen, RoleArticlePolish}
	for i, t := range c.All() {
		if t == nil || t.model == nil {
			return fmt.Errorf("no model configured for %s", roles[i])
		}
	}
	return nil
}

// Reset clears the history of every role.
func (c Configs) Reset() {
	for _, t := range c.All() {
		t.Reset()
	}
}
