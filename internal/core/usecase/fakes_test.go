package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedGenerator replays canned model replies in order. A nil entry in
// errs means success for that call.
type scriptedGenerator struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *scriptedGenerator) next(prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	i := g.calls
	g.calls++
	if i >= len(g.replies) {
		return "", errors.New("no scripted reply left")
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	return g.replies[i], nil
}

func (g *scriptedGenerator) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	return g.next(prompt)
}

func (g *scriptedGenerator) GenerateJSONFromPrompt(_ context.Context, prompt string) (string, error) {
	return g.next(prompt)
}

type fakeEngine struct {
	hits        []domain.Hit
	searchErr   error
	stats       domain.ReindexStats
	reindexErr  error
	lastQuery   string
	lastK       int
	searchCalls int
}

func (e *fakeEngine) Reindex(context.Context) (domain.ReindexStats, error) {
	return e.stats, e.reindexErr
}

func (e *fakeEngine) LoadIfExists(context.Context) (bool, error) { return true, nil }

func (e *fakeEngine) Search(_ context.Context, query string, k int) ([]domain.Hit, error) {
	e.searchCalls++
	e.lastQuery = query
	e.lastK = k
	if e.searchErr != nil {
		return nil, e.searchErr
	}
	return e.hits, nil
}

// appendExecutor appends canned messages and records that it ran.
type appendExecutor struct {
	appended []domain.Message
	err      error
	calls    int
}

func (e *appendExecutor) Execute(_ context.Context, messages []domain.Message) ([]domain.Message, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return append(append([]domain.Message(nil), messages...), e.appended...), nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	messages map[string][]domain.SessionMessage
	lastList int
	nextID   int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]domain.SessionMessage),
	}
}

func (s *memorySessionStore) CreateSession(_ context.Context, title string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	s.nextID++
	session := &domain.Session{
		ID:        "s-" + strconv.Itoa(s.nextID),
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *memorySessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", id))
	}
	copied := *session
	return &copied, nil
}

func (s *memorySessionStore) ListSessions(context.Context, int) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	return out, nil
}

func (s *memorySessionStore) SetTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "set title", fmt.Errorf("id %s", id))
	}
	session.Title = title
	return nil
}

func (s *memorySessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func (s *memorySessionStore) AppendMessage(_ context.Context, msg domain.SessionMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *memorySessionStore) ListMessages(_ context.Context, sessionID string, limit int) ([]domain.SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastList = limit
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.SessionMessage(nil), msgs...), nil
}

type fakeRouter struct {
	result *domain.RouteResult
	err    error
	got    []domain.Message
}

func (r *fakeRouter) Route(_ context.Context, messages []domain.Message) (*domain.RouteResult, error) {
	r.got = messages
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type fakeStorage struct {
	saved []string
	err   error
}

func (s *fakeStorage) SaveDocument(_ context.Context, filename string, _ io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, filename)
	return filename, nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (q *fakeQueue) PublishReindexRequested(_ context.Context, reason string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, reason)
	return nil
}

func (q *fakeQueue) SubscribeReindexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

type echoTool struct {
	name  string
	calls []string
	out   string
	err   error
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	t.calls = append(t.calls, input)
	if t.err != nil {
		return "", t.err
	}
	if t.out != "" {
		return t.out, nil
	}
	return "echo:" + input, nil
}
