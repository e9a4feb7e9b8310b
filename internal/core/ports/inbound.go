package ports

import (
	"context"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

// QuestionRouter is the inbound contract for one routed question run.
type QuestionRouter interface {
	Route(ctx context.Context, messages []domain.Message) (*domain.RouteResult, error)
}
