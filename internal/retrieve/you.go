// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve queries the web search backend that grounds the research
// stage. Results are returned as types.Snippet values keyed by URL.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/article-engine/internal/httputil"
	"github.com/pdiddy/article-engine/pkg/types"
)

// youAPIBase is the You.com search endpoint. Declared as a var so tests can
// substitute an httptest server.
var youAPIBase = "https://api.ydc-index.io/search"

const defaultTimeout = 30 * time.Second

// YouRM retrieves web snippets from the You.com search API.
type YouRM struct {
	Client     *http.Client
	APIKey     string
	Endpoint   string
	K          int
	MaxRetries int
}

// NewYouRM builds a retriever from the retrieval config, keeping k hits per query.
func NewYouRM(cfg types.RetrievalConfig, k int) *YouRM {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &YouRM{
		Client:     &http.Client{Timeout: timeout},
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.Endpoint,
		K:          k,
		MaxRetries: cfg.MaxRetries,
	}
}

type youResponse struct {
	Hits []youHit `json:"hits"`
}

type youHit struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Snippets    []string `json:"snippets"`
}

// Retrieve runs each query and returns the merged hits in first-seen order.
// URLs listed in exclude are dropped. A query that fails does not abort the
// others; Retrieve fails only when every query fails.
func (y *YouRM) Retrieve(ctx context.Context, queries []string, exclude []string) ([]types.Snippet, error) {
	skip := make(map[string]bool, len(exclude))
	for _, u := range exclude {
		skip[u] = true
	}

	var (
		order  []string
		byURL  = make(map[string]*types.Snippet)
		errs   []error
		issued int
	)

	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		issued++

		hits, err := y.search(ctx, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("query %q: %w", q, err))
			continue
		}

		for _, h := range hits {
			if h.URL == "" || skip[h.URL] {
				continue
			}
			s := types.Snippet{
				URL:         h.URL,
				Title:       h.Title,
				Description: h.Description,
				Excerpts:    h.Snippets,
			}
			if existing, ok := byURL[h.URL]; ok {
				existing.Merge(s)
				continue
			}
			byURL[h.URL] = &s
			order = append(order, h.URL)
		}
	}

	if issued > 0 && len(errs) == issued {
		return nil, errors.Join(errs...)
	}

	out := make([]types.Snippet, 0, len(order))
	for _, u := range order {
		out = append(out, *byURL[u])
	}
	return out, nil
}

func (y *YouRM) search(ctx context.Context, query string) ([]youHit, error) {
	endpoint := y.Endpoint
	if endpoint == "" {
		endpoint = youAPIBase
	}

	params := url.Values{"query": {query}}
	if y.K > 0 {
		params.Set("num_web_results", fmt.Sprintf("%d", y.K))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", y.APIKey)

	var resp youResponse
	if err := httputil.DoJSON(ctx, y.Client, req, y.MaxRetries, &resp); err != nil {
		return nil, fmt.Errorf("You.com search: %w", err)
	}

	hits := resp.Hits
	if y.K > 0 && len(hits) > y.K {
		hits = hits[:y.K]
	}
	return hits, nil
}
