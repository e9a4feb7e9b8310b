package domain

// Document is one source file loaded from the knowledge-base directory.
// DocID is the path relative to the corpus root and stays stable across loads.
type Document struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Chunk is a retrieval-sized passage. Identity is positional: a full rebuild
// reassigns every ChunkID.
type Chunk struct {
	DocID   string `json:"doc_id"`
	Source  string `json:"source"`
	ChunkID string `json:"chunk_id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// Hit is one search candidate with all constituent scores kept for
// observability. Score is the hybrid score unless reranking replaced the
// ordering, in which case ScoreRerank is set for the reranked head.
type Hit struct {
	Source      string   `json:"source"`
	DocID       string   `json:"doc_id"`
	ChunkID     string   `json:"chunk_id"`
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Score       float64  `json:"score"`
	ScoreDense  float64  `json:"score_sem"`
	ScoreLex    float64  `json:"score_lex"`
	ScoreRerank *float64 `json:"rerank_score,omitempty"`
}

type ReindexStats struct {
	Documents int `json:"docs"`
	Chunks    int `json:"chunks"`
}
