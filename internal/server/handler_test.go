// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-engine/pkg/types"
)

type fakePipeline struct {
	article    string
	runErr     error
	postRunErr error
	runPanics  bool

	calls []string
	topic string
	flags types.StageFlags
	ctx   context.Context
}

func (f *fakePipeline) Run(ctx context.Context, topic string, flags types.StageFlags) error {
	f.calls = append(f.calls, "run")
	f.topic, f.flags, f.ctx = topic, flags, ctx
	if f.runPanics {
		panic("index out of range: secret-internal-detail")
	}
	return f.runErr
}

func (f *fakePipeline) PostRun() error {
	f.calls = append(f.calls, "post_run")
	return f.postRunErr
}

func (f *fakePipeline) Summary() {
	f.calls = append(f.calls, "summary")
}

func (f *fakePipeline) Article() string {
	f.calls = append(f.calls, "article")
	return f.article
}

func newTestRouter(p Pipeline, logOut io.Writer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if logOut == nil {
		logOut = io.Discard
	}
	log := slog.New(slog.NewTextHandler(logOut, nil))
	return NewRouter(NewArticleHandler(p, log))
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-article", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestGenerateArticle_Success(t *testing.T) {
	p := &fakePipeline{article: "Quantum computing is ..."}
	w := post(newTestRouter(p, nil), `{"topic": "Quantum Computing"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"article": "Quantum computing is ..."}, decode(t, w))

	assert.Equal(t, []string{"run", "post_run", "summary", "article"}, p.calls)
	assert.Equal(t, "Quantum Computing", p.topic)
	assert.Equal(t, types.AllStages(), p.flags)
}

func TestGenerateArticle_MissingTopic(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"topic": ""}`,
		`{"topic": "   "}`,
		`{"topic": null}`,
		`not json`,
		``,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			p := &fakePipeline{article: "unused"}
			w := post(newTestRouter(p, nil), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, map[string]string{"error": "Topic not provided."}, decode(t, w))
			assert.Empty(t, p.calls, "pipeline must not be invoked")
		})
	}
}

func TestGenerateArticle_NoArticle(t *testing.T) {
	p := &fakePipeline{article: ""}
	w := post(newTestRouter(p, nil), `{"topic": "Quantum Computing"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]string{"error": "No article generated."}, decode(t, w))
}

func TestGenerateArticle_PipelineErrors(t *testing.T) {
	tests := []struct {
		name      string
		pipeline  *fakePipeline
		wantCalls []string
	}{
		{
			name:      "run fails",
			pipeline:  &fakePipeline{runErr: errors.New("openai: secret-internal-detail")},
			wantCalls: []string{"run"},
		},
		{
			name:      "post run fails",
			pipeline:  &fakePipeline{article: "doc", postRunErr: errors.New("disk full: secret-internal-detail")},
			wantCalls: []string{"run", "post_run"},
		},
		{
			name:      "run panics",
			pipeline:  &fakePipeline{article: "doc", runPanics: true},
			wantCalls: []string{"run"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			w := post(newTestRouter(tt.pipeline, &logs), `{"topic": "Quantum Computing"}`)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, map[string]string{"error": "Failed to generate article."}, decode(t, w))
			assert.NotContains(t, w.Body.String(), "secret-internal-detail")
			assert.Equal(t, tt.wantCalls, tt.pipeline.calls)

			assert.Contains(t, logs.String(), "Error generating article")
			assert.Contains(t, logs.String(), "secret-internal-detail")
		})
	}
}

func TestGenerateArticle_RunIsNotCancelledWithRequest(t *testing.T) {
	p := &fakePipeline{article: "doc"}
	r := newTestRouter(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-article", strings.NewReader(`{"topic":"x"}`)).WithContext(ctx)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, p.ctx)
	assert.NoError(t, p.ctx.Err())
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	r := newTestRouter(&fakePipeline{article: "doc"}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate-article", strings.NewReader(`{"topic":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/generate-article", nil)
	req.Header.Set("Origin", "https://editor.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- serveListener(ctx, ln, newTestRouter(&fakePipeline{article: "doc"}, nil), log)
	}()

	resp, err := http.Post("http://"+ln.Addr().String()+"/generate-article", "application/json", strings.NewReader(`{"topic":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeBadAddress(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := Serve(context.Background(), "256.0.0.1:99999", http.NotFoundHandler(), log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
