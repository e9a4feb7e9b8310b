package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
)

const (
	defaultMaxTurns = 20
	maxTitleRunes   = 60
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// AskUseCase answers one question inside a session: it replays the trimmed
// history through the router, persists the new user/assistant turns and
// titles a fresh session after its first question.
type AskUseCase struct {
	sessions ports.SessionStore
	router   ports.QuestionRouter
	maxTurns int
	logger   *slog.Logger
}

func NewAskUseCase(sessions ports.SessionStore, router ports.QuestionRouter, maxTurns int, logger *slog.Logger) *AskUseCase {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &AskUseCase{sessions: sessions, router: router, maxTurns: maxTurns, logger: logger}
}

func (uc *AskUseCase) Ask(ctx context.Context, sessionID, question string) (*domain.AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}

	session, err := uc.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// One turn is a user message plus the assistant reply.
	prior, err := uc.sessions.ListMessages(ctx, sessionID, 2*uc.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]domain.Message, 0, len(prior)+1)
	for _, msg := range prior {
		messages = append(messages, domain.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})

	result, err := uc.router.Route(ctx, messages)
	if err != nil {
		return nil, err
	}
	answer := strings.TrimSpace(result.Answer())

	if err := uc.sessions.AppendMessage(ctx, domain.SessionMessage{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   question,
	}); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}
	if err := uc.sessions.AppendMessage(ctx, domain.SessionMessage{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   answer,
	}); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	if session.Title == domain.DefaultSessionTitle {
		if err := uc.sessions.SetTitle(ctx, sessionID, autoTitle(question)); err != nil {
			uc.logger.Warn("session title update failed", "session_id", sessionID, "error", err)
		}
	}

	return &domain.AskResult{
		SessionID: sessionID,
		Answer:    answer,
		Route:     result.Route,
		Fallback:  result.Fallback,
		Sources:   result.KBSources,
		ToolsUsed: toolsUsed(result.Messages),
	}, nil
}

// toolsUsed lists the distinct tools that produced a tool turn during
// routing, in first-call order.
func toolsUsed(messages []domain.Message) []string {
	seen := make(map[string]bool)
	var out []string
	for _, msg := range messages {
		if msg.Role != domain.RoleTool || msg.ToolName == "" || seen[msg.ToolName] {
			continue
		}
		seen[msg.ToolName] = true
		out = append(out, msg.ToolName)
	}
	return out
}

// autoTitle derives a session title from the first question: collapsed
// whitespace, cut to 60 characters with an ellipsis.
func autoTitle(question string) string {
	title := whitespaceRe.ReplaceAllString(strings.TrimSpace(question), " ")
	runes := []rune(title)
	if len(runes) <= maxTitleRunes {
		return title
	}
	return string(runes[:maxTitleRunes-1]) + "…"
}
