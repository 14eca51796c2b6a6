// Package search provides the web_search backend: a Google Custom Search
// API client returning ranked results.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no API credentials are set.
var ErrNotConfigured = errors.New("web search is not configured: set search.api_key and search.engine_id")

// Result is one ranked search hit.
type Result struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Config controls the Google Custom Search client.
type Config struct {
	APIKey   string
	EngineID string
	// Endpoint overrides the API base URL, for tests.
	Endpoint string
	Timeout  time.Duration
}

const (
	defaultEndpoint = "https://www.googleapis.com/customsearch/v1"
	// The API serves at most 10 results per request; larger queries page
	// with the start parameter, up to a bounded number of calls.
	maxResultsPerRequest = 10
	maxAPIRequests       = 5
)

// Google queries the Google Custom Search JSON API.
type Google struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewGoogle builds the client. Credentials are validated on first use, not
// here, so an unconfigured process still starts.
func NewGoogle(cfg Config, logger *zap.Logger) *Google {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Search returns up to num ranked results for the query. The language code
// is forwarded as an lr restriction for non-English queries.
func (g *Google) Search(ctx context.Context, query string, num int, language string) ([]Result, error) {
	if g.cfg.APIKey == "" || g.cfg.EngineID == "" {
		return nil, ErrNotConfigured
	}
	if num <= 0 {
		num = maxResultsPerRequest
	}

	results := make([]Result, 0, num)
	pages := (num + maxResultsPerRequest - 1) / maxResultsPerRequest
	if pages > maxAPIRequests {
		pages = maxAPIRequests
	}

	for page := 0; page < pages; page++ {
		remaining := num - len(results)
		if remaining <= 0 {
			break
		}
		limit := remaining
		if limit > maxResultsPerRequest {
			limit = maxResultsPerRequest
		}

		items, err := g.fetchPage(ctx, query, language, page*maxResultsPerRequest+1, limit)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			results = append(results, Result{
				Rank:    len(results) + 1,
				Title:   item.Title,
				URL:     item.Link,
				Snippet: item.Snippet,
				Source:  sourceOf(item),
			})
		}
		// A short page means the index is exhausted.
		if len(items) < limit {
			break
		}
	}

	g.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

type searchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Google) fetchPage(ctx context.Context, query, language string, start, limit int) ([]searchItem, error) {
	params := url.Values{}
	params.Set("key", g.cfg.APIKey)
	params.Set("cx", g.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))
	params.Set("start", strconv.Itoa(start))
	if language != "" && language != "en" {
		params.Set("lr", "lang_"+language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side already handled

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("search API error %d: %s", body.Error.Code, body.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}
	return body.Items, nil
}

// sourceOf prefers the API's display link and falls back to the result's
// host with any www. prefix dropped.
func sourceOf(item searchItem) string {
	if item.DisplayLink != "" {
		return item.DisplayLink
	}
	u, err := url.Parse(item.Link)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Host, "www.")
}
