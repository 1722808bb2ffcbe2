// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"net"
	"strconv"
	"time"
)

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Host is the bind address. The service always listens on all interfaces.
	Host string `json:"host" yaml:"host"`

	// Port is the listen port (default 3001, overridden by PORT).
	Port int `json:"port" yaml:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LMConfig holds settings for one language model role.
type LMConfig struct {
	// Model is the chat model identifier (e.g. "gpt-4").
	Model string `json:"model" yaml:"model"`

	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// TopP is the nucleus sampling cutoff.
	TopP float64 `json:"top_p" yaml:"top_p"`
}

// AIConfig holds shared settings for the generation API.
type AIConfig struct {
	// Provider selects the API: "openai" (default) or "anthropic".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// APIKey is the authentication key for the generation API.
	APIKey string `json:"api_key,omitempty" yaml:"-"`

	// BaseURL overrides the API endpoint. Empty uses the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is passed to the API client. Zero means a single attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single completion request. Zero means no timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// LMRolesConfig assigns a model to each stage of the pipeline.
type LMRolesConfig struct {
	AIConfig `yaml:",inline"`

	ConvSimulator LMConfig `json:"conv_simulator" yaml:"conv_simulator"`
	QuestionAsker LMConfig `json:"question_asker" yaml:"question_asker"`
	OutlineGen    LMConfig `json:"outline_gen" yaml:"outline_gen"`
	ArticleGen    LMConfig `json:"article_gen" yaml:"article_gen"`
	ArticlePolish LMConfig `json:"article_polish" yaml:"article_polish"`
}

// RetrievalConfig holds settings for the web retrieval backend.
type RetrievalConfig struct {
	// APIKey is the retrieval API key.
	APIKey string `json:"api_key,omitempty" yaml:"-"`

	// Endpoint overrides the search endpoint. Empty uses the provider default.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries on HTTP 429. Zero disables retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// RunnerConfig holds settings for the research and writing pipeline.
type RunnerConfig struct {
	// OutputDir is the base directory for per-topic artifacts.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxConvTurn caps the question/answer turns per simulated conversation.
	MaxConvTurn int `json:"max_conv_turn" yaml:"max_conv_turn"`

	// MaxPerspective caps the number of generated editor personas.
	MaxPerspective int `json:"max_perspective" yaml:"max_perspective"`

	// MaxSearchQueriesPerTurn caps the queries issued for one question.
	MaxSearchQueriesPerTurn int `json:"max_search_queries_per_turn" yaml:"max_search_queries_per_turn"`

	// SearchTopK is the number of search hits kept per query.
	SearchTopK int `json:"search_top_k" yaml:"search_top_k"`

	// RetrieveTopK is the number of snippets used to ground one section.
	RetrieveTopK int `json:"retrieve_top_k" yaml:"retrieve_top_k"`

	// MaxThreadNum bounds concurrent conversations and section writers.
	MaxThreadNum int `json:"max_thread_num" yaml:"max_thread_num"`
}

// Runner defaults.
const (
	DefaultOutputDir               = "output/articles"
	DefaultMaxConvTurn             = 3
	DefaultMaxPerspective          = 3
	DefaultMaxSearchQueriesPerTurn = 3
	DefaultSearchTopK              = 3
	DefaultRetrieveTopK            = 3
	DefaultMaxThreadNum            = 10
)

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c RunnerConfig) WithDefaults() RunnerConfig {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.MaxConvTurn <= 0 {
		c.MaxConvTurn = DefaultMaxConvTurn
	}
	if c.MaxPerspective <= 0 {
		c.MaxPerspective = DefaultMaxPerspective
	}
	if c.MaxSearchQueriesPerTurn <= 0 {
		c.MaxSearchQueriesPerTurn = DefaultMaxSearchQueriesPerTurn
	}
	if c.SearchTopK <= 0 {
		c.SearchTopK = DefaultSearchTopK
	}
	if c.RetrieveTopK <= 0 {
		c.RetrieveTopK = DefaultRetrieveTopK
	}
	if c.MaxThreadNum <= 0 {
		c.MaxThreadNum = DefaultMaxThreadNum
	}
	return c
}

// Generation API providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultLMRoles returns the model assignment used by the service: a small
// model for the conversation roles and a large model for writing.
func DefaultLMRoles() LMRolesConfig {
	return DefaultLMRolesFor(ProviderOpenAI)
}

// DefaultLMRolesFor returns the default role models for provider. Unknown
// providers get the OpenAI models.
func DefaultLMRolesFor(provider string) LMRolesConfig {
	small := LMConfig{Model: "gpt-3.5-turbo", MaxTokens: 500, Temperature: 0.7, TopP: 0.9}
	large := LMConfig{Model: "gpt-4", MaxTokens: 3000, Temperature: 0.7, TopP: 0.9}
	if provider == ProviderAnthropic {
		small.Model = "claude-haiku-4-5"
		large.Model = "claude-sonnet-4-5"
	}
	return LMRolesConfig{
		AIConfig:      AIConfig{Provider: provider},
		ConvSimulator: small,
		QuestionAsker: small,
		OutlineGen:    large,
		ArticleGen:    large,
		ArticlePolish: large,
	}
}

// StageFlags selects which pipeline stages run on one invocation.
type StageFlags struct {
	Research bool `json:"do_research" yaml:"do_research"`
	Outline  bool `json:"do_generate_outline" yaml:"do_generate_outline"`
	Draft    bool `json:"do_generate_article" yaml:"do_generate_article"`
	Polish   bool `json:"do_polish_article" yaml:"do_polish_article"`
}

// AllStages enables research, outline, draft, and polish.
func AllStages() StageFlags {
	return StageFlags{Research: true, Outline: true, Draft: true, Polish: true}
}

// AppConfig groups everything the service needs at startup.
type AppConfig struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	LM        LMRolesConfig   `json:"lm" yaml:"lm"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Runner    RunnerConfig    `json:"runner" yaml:"runner"`
}
