package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

func TestPlanHeuristicSQLGoesToDB(t *testing.T) {
	gen := &scriptedGenerator{}
	planner := NewPlanner(gen, testLogger)

	got := planner.Plan(context.Background(), "SELECT * FROM users WHERE active = true")
	if got != domain.RouteStructuredData {
		t.Fatalf("expected db route, got %q", got)
	}
	if gen.calls != 0 {
		t.Fatalf("heuristic hit must not consult the model, got %d calls", gen.calls)
	}
}

func TestPlanHeuristicRecencyGoesToWeb(t *testing.T) {
	planner := NewPlanner(&scriptedGenerator{}, testLogger)

	cases := []string{
		"последние новости по go",
		"что сегодня пишут про kubernetes",
		"найди в интернете свежий release",
	}
	for _, q := range cases {
		if got := planner.Plan(context.Background(), q); got != domain.RouteWeb {
			t.Fatalf("Plan(%q) = %q, want web", q, got)
		}
	}
}

func TestPlanHeuristicTableWordsGoToDB(t *testing.T) {
	planner := NewPlanner(&scriptedGenerator{}, testLogger)
	if got := planner.Plan(context.Background(), "сколько строк в таблице orders?"); got != domain.RouteStructuredData {
		t.Fatalf("expected db route, got %q", got)
	}
}

func TestPlanConsultsModelForNeutralQuestion(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"WEB"}}
	planner := NewPlanner(gen, testLogger)

	got := planner.Plan(context.Background(), "how do I restart the billing service?")
	if got != domain.RouteWeb {
		t.Fatalf("expected model escalation to web, got %q", got)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one model call, got %d", gen.calls)
	}
}

func TestPlanModelCanEscalateToDB(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{" db "}}
	planner := NewPlanner(gen, testLogger)

	if got := planner.Plan(context.Background(), "how many orders were created?"); got != domain.RouteStructuredData {
		t.Fatalf("expected db route from model, got %q", got)
	}
}

func TestPlanModelFailureKeepsKB(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{""}, errs: []error{errors.New("model down")}}
	planner := NewPlanner(gen, testLogger)

	if got := planner.Plan(context.Background(), "how do I configure backups?"); got != domain.RouteKnowledgeBase {
		t.Fatalf("expected kb route on model failure, got %q", got)
	}
}

func TestPlanModelGibberishKeepsKB(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"I think the knowledge base fits best"}}
	planner := NewPlanner(gen, testLogger)

	if got := planner.Plan(context.Background(), "how do I configure backups?"); got != domain.RouteKnowledgeBase {
		t.Fatalf("expected kb route, got %q", got)
	}
}
