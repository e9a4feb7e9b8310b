package ports

import (
	"context"
	"io"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

// DocumentLoader reads every supported source document under the corpus
// directory. Single unreadable files are skipped; a directory-level failure
// is returned.
type DocumentLoader interface {
	LoadDocuments(ctx context.Context) ([]domain.Document, error)
}

// Chunker splits one document's text into ordered (title, passage) chunks.
type Chunker interface {
	Split(doc domain.Document) []domain.Chunk
}

// Embedder builds unit-normalized vectors for chunk texts and queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, passage) pairs with a more expensive pairwise
// relevance model. A failure here is a degrade signal, not a fatal error.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// RetrievalEngine is the hybrid search surface consumed by the kb executor.
type RetrievalEngine interface {
	Reindex(ctx context.Context) (domain.ReindexStats, error)
	LoadIfExists(ctx context.Context) (bool, error)
	Search(ctx context.Context, query string, k int) ([]domain.Hit, error)
}

// TextGenerator produces free text (or strict JSON) from a prompt. Used by the
// planner confirmation step, the tool-agent loop and answer synthesis.
type TextGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// Tool is one callable bound to an executor's agent.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Executor runs one destination's tool-using agent over the conversation and
// returns the extended message sequence.
type Executor interface {
	Execute(ctx context.Context, messages []domain.Message) ([]domain.Message, error)
}

// SessionStore persists sessions and their user/assistant message history.
type SessionStore interface {
	CreateSession(ctx context.Context, title string) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, limit int) ([]domain.Session, error)
	SetTitle(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg domain.SessionMessage) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.SessionMessage, error)
}

// DocumentStorage persists uploaded files into the corpus directory.
type DocumentStorage interface {
	SaveDocument(ctx context.Context, filename string, data io.Reader) (string, error)
}

// ReindexQueue decouples corpus uploads from the rebuild itself.
type ReindexQueue interface {
	PublishReindexRequested(ctx context.Context, reason string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
}
