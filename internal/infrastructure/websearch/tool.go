package websearch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/kb-router/internal/infrastructure/resilience"
)

// Tool exposes the search client as a web_search agent tool. Output is plain
// text: one block per result with title, URL and snippet, so the agent can
// quote URLs in its final answer.
type Tool struct {
	client *Client
}

func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Name() string { return "web_search" }

func (t *Tool) Description() string {
	return "Search the web. Input: the search query. Returns titles, URLs and snippets."
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	results, err := t.client.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "no results", nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func classifySearchError(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retry: false, CountFailure: false}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Classification{Retry: true, CountFailure: true}
		default:
			return resilience.Classification{Retry: false, CountFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retry: true, CountFailure: true}
	}

	return resilience.Classification{Retry: false, CountFailure: true}
}
