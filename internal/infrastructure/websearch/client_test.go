package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchSendsQueryAndKey(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"Go release notes","url":"https://go.dev/doc","content":"latest release"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-123", 3, nil)
	results, err := client.Search(context.Background(), "go release")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://go.dev/doc" {
		t.Fatalf("unexpected results: %v", results)
	}
	if payload["api_key"] != "key-123" || payload["query"] != "go release" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["max_results"] != float64(3) {
		t.Fatalf("unexpected max_results: %v", payload["max_results"])
	}
}

func TestToolFormatsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"title":"One","url":"https://a.example","content":"first"},
			{"title":"Two","url":"https://b.example","content":"second"}
		]}`))
	}))
	defer server.Close()

	tool := NewTool(New(server.URL, "k", 5, nil))
	out, err := tool.Call(context.Background(), "query")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(out, "[1] One") || !strings.Contains(out, "https://b.example") {
		t.Fatalf("unexpected tool output %q", out)
	}
}

func TestToolEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	tool := NewTool(New(server.URL, "k", 5, nil))
	out, err := tool.Call(context.Background(), "query")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out != "no results" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestToolRejectsEmptyQuery(t *testing.T) {
	tool := NewTool(New("http://unused", "k", 5, nil))
	if _, err := tool.Call(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestSearchSurfacesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, "bad", 5, nil)
	_, err := client.Search(context.Background(), "query")
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}
