package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
)

// Destination agent instructions. The kb wording is load-bearing: the
// fallback detector matches the exact "нет данных" phrasing below.
const (
	KBAgentSystem = `You are the knowledge-base agent (RAG). Use ONLY the kb_* tools.

Rules:
- First call kb_search with the user question.
- If hits are empty, reply exactly "В KB нет данных" and nothing else.
- Never put chunk ids, chunk numbers or file paths into the answer.
- If you add a "Sources" block, list only unique FILE NAMES (e.g. runbook.md), no duplicates, no paths.`

	DBAgentSystem = `You are the database agent. Use ONLY the sql_db_* tools.

Rules:
- To read data, run SELECT queries.
- To change data, run UPDATE/INSERT/DELETE and then a SELECT to verify the result.
- Report the outcome and what was done.`

	WebAgentSystem = `You are the web agent. Use ONLY web_search.

Rules:
- Give a short answer.
- End with a list of 3-5 source URLs.`
)

type state string

const (
	statePlanner state = "planner"
	stateKB      state = "kb"
	stateDB      state = "db"
	stateWeb     state = "web"
	stateEnd     state = "end"
)

// transitions maps each state and the signal it emitted to the next state.
// The empty signal means "done". Only the kb state can emit "web": the
// no-data fallback.
var transitions = map[state]map[string]state{
	statePlanner: {"kb": stateKB, "db": stateDB, "web": stateWeb},
	stateKB:      {"web": stateWeb, "": stateEnd},
	stateDB:      {"": stateEnd},
	stateWeb:     {"": stateEnd},
}

// Router is the question-routing state machine: a planner picks the
// destination, the destination's agent answers, and an empty-handed kb agent
// falls back to web exactly once.
type Router struct {
	planner   *Planner
	executors map[domain.Route]ports.Executor
	logger    *slog.Logger
}

func NewRouter(planner *Planner, executors map[domain.Route]ports.Executor, logger *slog.Logger) *Router {
	return &Router{planner: planner, executors: executors, logger: logger}
}

func (r *Router) Route(ctx context.Context, messages []domain.Message) (*domain.RouteResult, error) {
	question := domain.LastUserText(messages)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "route question",
			fmt.Errorf("at least one user message is required"))
	}

	planned := r.planner.Plan(ctx, question)
	r.logger.Info("route planned", "route", planned)

	result := &domain.RouteResult{
		Messages: append([]domain.Message(nil), messages...),
		Route:    planned,
	}

	current, ok := transitions[statePlanner][string(planned)]
	if !ok {
		return nil, fmt.Errorf("no transition from planner for route %q", planned)
	}

	for current != stateEnd {
		signal, err := r.runState(ctx, current, result)
		if err != nil {
			return nil, err
		}
		next, ok := transitions[current][signal]
		if !ok {
			return nil, fmt.Errorf("no transition from %s on signal %q", current, signal)
		}
		current = next
	}
	return result, nil
}

func (r *Router) runState(ctx context.Context, current state, result *domain.RouteResult) (string, error) {
	route := stateRoute(current)
	executor, ok := r.executors[route]
	if !ok {
		return "", fmt.Errorf("no executor for route %q", route)
	}

	out, err := executor.Execute(ctx, result.Messages)
	if err != nil {
		return "", fmt.Errorf("%s executor: %w", route, err)
	}
	result.Messages = out

	if current != stateKB {
		return "", nil
	}

	result.KBSources = extractKBSources(out)
	if len(result.KBSources) == 0 && answerSaysNoData(domain.LastText(out)) {
		result.Fallback = domain.RouteWeb
		r.logger.Info("kb has no data, falling back to web search")
		return "web", nil
	}
	return "", nil
}

func stateRoute(s state) domain.Route {
	switch s {
	case stateKB:
		return domain.RouteKnowledgeBase
	case stateDB:
		return domain.RouteStructuredData
	default:
		return domain.RouteWeb
	}
}

// extractKBSources pulls unique source file names from the most recent
// kb_search tool output. Order follows the hit order.
func extractKBSources(messages []domain.Message) []string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != domain.RoleTool || msg.ToolName != "kb_search" {
			continue
		}

		var data kbHits
		if err := json.Unmarshal([]byte(msg.Content), &data); err != nil {
			return nil
		}
		seen := make(map[string]bool, len(data.Hits))
		var sources []string
		for _, hit := range data.Hits {
			src := strings.TrimSpace(hit.Source)
			if src == "" {
				continue
			}
			src = baseFileName(src)
			if seen[src] {
				continue
			}
			seen[src] = true
			sources = append(sources, src)
		}
		return sources
	}
	return nil
}

func baseFileName(source string) string {
	s := strings.ReplaceAll(source, `\`, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func answerSaysNoData(text string) bool {
	low := strings.ToLower(text)
	return strings.Contains(low, "в kb нет данных") ||
		strings.Contains(low, "kb нет данных") ||
		strings.Contains(low, "нет данных в kb")
}
