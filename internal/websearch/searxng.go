// Package websearch provides an optional SearXNG client used to mix
// current web results into retrieval context.
//
// The client is best-effort by contract: callers treat every error as a
// signal to degrade to local-only retrieval, never as a turn failure.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelwise/reelwise/internal/log"
)

const (
	// DefaultMaxResults bounds how many web excerpts are returned per query.
	DefaultMaxResults = 2

	// requestTimeout limits how long one search may take.
	requestTimeout = 10 * time.Second

	// maxResponseBytes caps the SearXNG response body read.
	maxResponseBytes = 1 << 20 // 1 MB

	// snippetMaxRunes caps each excerpt injected into the prompt.
	snippetMaxRunes = 500
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client queries a SearXNG instance's JSON API.
type Client struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a SearXNG client. baseURL is the instance root,
// e.g. "http://localhost:8888". maxResults <= 0 uses DefaultMaxResults.
func NewClient(baseURL string, maxResults int, logger log.Logger) *Client {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// searxngResponse mirrors the fields we use from the JSON API.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns at most maxResults excerpts.
// The query is scoped to the movie industry before sending.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", "movie industry "+query)
	q.Set("format", "json")

	reqURL := c.baseURL + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading searxng response: %w", err)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding searxng response: %w", err)
	}

	results := make([]Result, 0, c.maxResults)
	for _, r := range parsed.Results {
		if r.Title == "" && r.Content == "" {
			continue
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncateRunes(r.Content, snippetMaxRunes),
		})
		if len(results) == c.maxResults {
			break
		}
	}

	c.logger.Debug("web search completed", "query", query, "results", len(results))
	return results, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
