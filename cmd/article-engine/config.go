// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/article-engine/internal/secrets"
	"github.com/pdiddy/article-engine/pkg/types"
)

// lmRoleKeys maps config sections to the model role they configure.
var lmRoleKeys = []string{"conv_simulator", "question_asker", "outline_gen", "article_gen", "article_polish"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)

	v.SetDefault("runner.output_dir", types.DefaultOutputDir)
	v.SetDefault("runner.max_conv_turn", types.DefaultMaxConvTurn)
	v.SetDefault("runner.max_perspective", types.DefaultMaxPerspective)
	v.SetDefault("runner.max_search_queries_per_turn", types.DefaultMaxSearchQueriesPerTurn)
	v.SetDefault("runner.search_top_k", types.DefaultSearchTopK)
	v.SetDefault("runner.retrieve_top_k", types.DefaultRetrieveTopK)
	v.SetDefault("runner.max_thread_num", types.DefaultMaxThreadNum)

	v.SetDefault("retrieval.timeout", "30s")
	v.SetDefault("retrieval.max_retries", 0)
	v.SetDefault("lm.provider", types.ProviderOpenAI)
	v.SetDefault("lm.max_retries", 0)
}

func roleConfigs(r *types.LMRolesConfig) []*types.LMConfig {
	return []*types.LMConfig{&r.ConvSimulator, &r.QuestionAsker, &r.OutlineGen, &r.ArticleGen, &r.ArticlePolish}
}

// appConfig assembles the typed configuration from viper and the loaded
// credentials.
func appConfig(v *viper.Viper, creds secrets.Credentials) types.AppConfig {
	cfg := types.AppConfig{
		Server: types.ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Retrieval: types.RetrievalConfig{
			APIKey:     creds.RetrievalKey,
			Endpoint:   v.GetString("retrieval.endpoint"),
			Timeout:    v.GetDuration("retrieval.timeout"),
			MaxRetries: v.GetInt("retrieval.max_retries"),
		},
		Runner: types.RunnerConfig{
			OutputDir:               v.GetString("runner.output_dir"),
			MaxConvTurn:             v.GetInt("runner.max_conv_turn"),
			MaxPerspective:          v.GetInt("runner.max_perspective"),
			MaxSearchQueriesPerTurn: v.GetInt("runner.max_search_queries_per_turn"),
			SearchTopK:              v.GetInt("runner.search_top_k"),
			RetrieveTopK:            v.GetInt("runner.retrieve_top_k"),
			MaxThreadNum:            v.GetInt("runner.max_thread_num"),
		}.WithDefaults(),
	}

	provider := v.GetString("lm.provider")
	apiKey := creds.GenerationKey
	if provider == types.ProviderAnthropic {
		apiKey = v.GetString("lm.anthropic_api_key")
	}

	// Role models start from the provider's defaults; only keys that are
	// actually configured override them.
	cfg.LM = types.DefaultLMRolesFor(provider)
	cfg.LM.AIConfig = types.AIConfig{
		Provider:   provider,
		APIKey:     apiKey,
		BaseURL:    v.GetString("lm.base_url"),
		MaxRetries: v.GetInt("lm.max_retries"),
		Timeout:    v.GetDuration("lm.timeout"),
	}
	for i, lc := range roleConfigs(&cfg.LM) {
		prefix := "lm." + lmRoleKeys[i] + "."
		if v.IsSet(prefix + "model") {
			lc.Model = v.GetString(prefix + "model")
		}
		if v.IsSet(prefix + "max_tokens") {
			lc.MaxTokens = v.GetInt(prefix + "max_tokens")
		}
		if v.IsSet(prefix + "temperature") {
			lc.Temperature = v.GetFloat64(prefix + "temperature")
		}
		if v.IsSet(prefix + "top_p") {
			lc.TopP = v.GetFloat64(prefix + "top_p")
		}
	}
	return cfg
}
