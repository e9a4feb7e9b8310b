package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/kb-router/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server. It implements both text generation
// and embeddings, with every call routed through the resilience executor so
// transient model failures are retried and persistent ones trip the breaker.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, genModel, embedModel string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

// GenerateFromPrompt returns the model's free-text completion, trimmed.
func (c *Client) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

// GenerateJSONFromPrompt forces JSON output mode and strips any text the
// model wraps around the object.
func (c *Client) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	raw, err := c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
	if err != nil {
		return "", err
	}
	return extractJSONObject(raw), nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.exec.Run(ctx, "ollama_embed", classifyOllamaError, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := c.exec.Run(ctx, "ollama_generate", classifyOllamaError, func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
