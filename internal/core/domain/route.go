package domain

// Route is the backend chosen to answer a question.
type Route string

const (
	RouteKnowledgeBase  Route = "kb"
	RouteStructuredData Route = "db"
	RouteWeb            Route = "web"
)

// RouteResult is the terminal state of one routing run.
type RouteResult struct {
	Messages  []Message `json:"messages"`
	Route     Route     `json:"route"`
	Fallback  Route     `json:"fallback,omitempty"`
	KBSources []string  `json:"kb_sources,omitempty"`
}

// Answer extracts the final assistant answer from the routed conversation.
func (r RouteResult) Answer() string {
	return LastText(r.Messages)
}
