// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/article-engine/internal/lm"
	"github.com/pdiddy/article-engine/internal/retrieve"
	"github.com/pdiddy/article-engine/internal/secrets"
	"github.com/pdiddy/article-engine/internal/server"
	"github.com/pdiddy/article-engine/internal/storm"
	"github.com/pdiddy/article-engine/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /generate-article over HTTP",
	Long: `Serve loads credentials, builds the article pipeline once, and listens on
0.0.0.0 at PORT (default 3001). Each request runs research, outline, draft,
and polish for the posted topic and returns the polished article.

Credentials come from OPENAI_API_KEY and YDC_API_KEY in the environment (a
.env file is loaded first) or from the secrets file. Startup fails when
neither source provides both keys.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	runner, cfg, err := buildRunner(cmd)
	if err != nil {
		return err
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.NewArticleHandler(runner, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, cfg.Server.Addr(), router, logger)
}

// buildRunner loads credentials and configuration and constructs the
// pipeline with its language models and retriever.
func buildRunner(cmd *cobra.Command) (*storm.Runner, types.AppConfig, error) {
	if err := secrets.LoadDotEnv(".env"); err != nil {
		return nil, types.AppConfig{}, err
	}
	secretsFile, _ := cmd.Flags().GetString("secrets-file")
	creds, err := secrets.Load(secretsFile)
	if err != nil {
		return nil, types.AppConfig{}, fmt.Errorf("loading credentials: %w", err)
	}

	cfg := appConfig(viper.GetViper(), creds)
	logger.Debug("configuration loaded",
		"addr", cfg.Server.Addr(),
		"output_dir", cfg.Runner.OutputDir,
		"article_model", cfg.LM.ArticleGen.Model)

	lms, err := lm.NewProviderConfigs(cfg.LM)
	if err != nil {
		return nil, types.AppConfig{}, err
	}
	rm := retrieve.NewYouRM(cfg.Retrieval, cfg.Runner.SearchTopK)

	runner, err := storm.New(cfg.Runner, lms, rm, logger)
	if err != nil {
		return nil, types.AppConfig{}, err
	}
	return runner, cfg, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
