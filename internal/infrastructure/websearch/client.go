package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/kb-router/internal/infrastructure/resilience"
)

const defaultMaxResults = 5

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Client calls the Tavily search API.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey string, maxResults int, exec *resilience.Executor) *Client {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	request := map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
	}
	var response struct {
		Results []Result `json:"results"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/search", request, &response)
	}
	var err error
	if c.exec != nil {
		err = c.exec.Run(ctx, "web_search", classifySearchError, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return response.Results, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

type statusError struct {
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("web search status: %s", e.status)
	}
	return fmt.Sprintf("web search status: %s: %s", e.status, e.body)
}
