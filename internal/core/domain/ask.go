package domain

// AskResult is the API-facing outcome of one question.
type AskResult struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Route     Route    `json:"route"`
	Fallback  Route    `json:"fallback,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	ToolsUsed []string `json:"tools_used"`
}

// UploadedFile describes one stored corpus document.
type UploadedFile struct {
	Filename string `json:"filename"`
	Bytes    int    `json:"bytes"`
}
