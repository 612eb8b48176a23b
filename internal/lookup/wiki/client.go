// Package wiki resolves free-text queries against the Wikipedia opensearch
// and page-summary APIs. It backs the chat assistant's last-resort answer
// path; callers treat any failure as "use the fallback reply".
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/seismicguard/seismicguard/internal/observability"
)

// Client implements domain.Lookup using Wikipedia's public APIs.
type Client struct {
	searchURL  string
	summaryURL string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Wikipedia lookup client with an explicit timeout.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		searchURL:  "https://en.wikipedia.org/w/api.php",
		summaryURL: "https://en.wikipedia.org/api/rest_v1/page/summary",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Search finds the best-matching article title for query and returns the
// article's summary extract. An empty string with nil error means no match.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	title, err := c.bestTitle(ctx, query)
	if err != nil {
		c.metrics.Lookups.WithLabelValues("error").Inc()
		return "", err
	}
	if title == "" {
		c.metrics.Lookups.WithLabelValues("empty").Inc()
		return "", nil
	}

	extract, err := c.summary(ctx, title)
	if err != nil {
		c.metrics.Lookups.WithLabelValues("error").Inc()
		return "", err
	}
	if extract == "" {
		c.metrics.Lookups.WithLabelValues("empty").Inc()
		return "", nil
	}

	c.metrics.Lookups.WithLabelValues("success").Inc()
	return extract, nil
}

// bestTitle runs an opensearch query and returns the first result title.
// The opensearch response is a positional JSON array:
// [query, [titles...], [descriptions...], [urls...]].
func (c *Client) bestTitle(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":    {"opensearch"},
		"search":    {query},
		"limit":     {"1"},
		"namespace": {"0"},
		"format":    {"json"},
	}

	body, err := c.get(ctx, c.searchURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var result []json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode opensearch response: %w", err)
	}
	if len(result) < 2 {
		return "", nil
	}
	var titles []string
	if err := json.Unmarshal(result[1], &titles); err != nil {
		return "", fmt.Errorf("decode opensearch titles: %w", err)
	}
	if len(titles) == 0 {
		return "", nil
	}
	return titles[0], nil
}

func (c *Client) summary(ctx context.Context, title string) (string, error) {
	body, err := c.get(ctx, c.summaryURL+"/"+url.PathEscape(title))
	if err != nil {
		return "", err
	}

	var page struct {
		Extract string `json:"extract"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	return page.Extract, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SeismicGuard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
