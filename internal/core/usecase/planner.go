package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
)

// Keyword cues checked against the lowercased question. A hit decides the
// route without a model call.
var (
	dbCues = []string{
		"select ", "insert ", "update ", "delete ", "create table", "alter table",
		"postgres", "postgresql", "таблиц", "таблица", "sql", "schema", "pg_catalog",
	}
	webCues = []string{
		"свеже", "новост", "сегодня", "вчера", "последн",
		"internet", "гугл", "найди в интернете", "ссылк", "url",
	}
)

const plannerPrompt = `You are a router. Pick exactly ONE destination for the user question: KB, DB or WEB.

KB: documentation, errors, how-to instructions (searched in the local knowledge base).
DB: tables, SQL, data stored in PostgreSQL (needs database tools).
WEB: the user needs fresh information or the knowledge base has no answer (internet search).

Answer with strictly one word: KB or DB or WEB. No explanations.

Question:
`

// Planner decides which destination answers a question. Keyword cues win
// outright; only a default kb decision is double-checked with the model, and
// the model can only move the route away from kb. A model failure keeps kb.
type Planner struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

func NewPlanner(generator ports.TextGenerator, logger *slog.Logger) *Planner {
	return &Planner{generator: generator, logger: logger}
}

func (p *Planner) Plan(ctx context.Context, question string) domain.Route {
	route := heuristicRoute(question)
	if route != domain.RouteKnowledgeBase {
		return route
	}

	reply, err := p.generator.GenerateFromPrompt(ctx, plannerPrompt+question)
	if err != nil {
		p.logger.Warn("planner model unavailable, keeping kb route", "error", err)
		return domain.RouteKnowledgeBase
	}

	switch answer := strings.ToUpper(strings.TrimSpace(reply)); {
	case strings.Contains(answer, "DB"):
		return domain.RouteStructuredData
	case strings.Contains(answer, "WEB"):
		return domain.RouteWeb
	default:
		return domain.RouteKnowledgeBase
	}
}

func heuristicRoute(question string) domain.Route {
	low := strings.ToLower(question)
	for _, cue := range dbCues {
		if strings.Contains(low, cue) {
			return domain.RouteStructuredData
		}
	}
	for _, cue := range webCues {
		if strings.Contains(low, cue) {
			return domain.RouteWeb
		}
	}
	return domain.RouteKnowledgeBase
}
