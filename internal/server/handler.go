// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the article pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/article-engine/pkg/types"
)

// Response messages returned to callers. Internal error detail is never
// included.
const (
	MsgTopicMissing   = "Topic not provided."
	MsgNoArticle      = "No article generated."
	MsgGenerateFailed = "Failed to generate article."
)

// Pipeline is the article generator the handler drives. Calls happen in the
// order Run, PostRun, Summary, Article.
type Pipeline interface {
	Run(ctx context.Context, topic string, flags types.StageFlags) error
	PostRun() error
	Summary()
	Article() string
}

// ArticleHandler serves article generation requests against a shared pipeline.
type ArticleHandler struct {
	pipeline Pipeline
	log      *slog.Logger
}

// NewArticleHandler returns a handler over pipeline. A nil logger uses slog.Default.
func NewArticleHandler(pipeline Pipeline, log *slog.Logger) *ArticleHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ArticleHandler{pipeline: pipeline, log: log}
}

// GenerateArticle handles POST /generate-article.
func (h *ArticleHandler) GenerateArticle(c *gin.Context) {
	var req types.ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: MsgTopicMissing})
		return
	}

	// Generation runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())

	article, err := h.generate(ctx, req.Topic)
	if err != nil {
		h.log.Error("Error generating article", "error", err.Error())
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: MsgGenerateFailed})
		return
	}
	if article == "" {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: MsgNoArticle})
		return
	}

	c.JSON(http.StatusOK, types.ArticleResponse{Article: article})
}

func (h *ArticleHandler) generate(ctx context.Context, topic string) (article string, err error) {
	defer func() {
		if p := recover(); p != nil {
			article, err = "", fmt.Errorf("pipeline panic: %v", p)
		}
	}()

	if err := h.pipeline.Run(ctx, topic, types.AllStages()); err != nil {
		return "", err
	}
	if err := h.pipeline.PostRun(); err != nil {
		return "", err
	}
	h.pipeline.Summary()
	return h.pipeline.Article(), nil
}

// NewRouter wires the routes and a CORS policy that admits every origin.
func NewRouter(h *ArticleHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	r.Use(cors.New(cfg))

	r.POST("/generate-article", h.GenerateArticle)
	return r
}
