package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Classification is a classifier's verdict on one failure: whether the call
// may be retried, and whether it should count against the circuit breaker.
// Context cancellation is typically neither.
type Classification struct {
	Retry        bool
	CountFailure bool
}

type Classifier func(err error) Classification

// Executor runs outbound calls under a retry loop wrapped in a lazily created
// per-operation circuit breaker.
type Executor struct {
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy, logger *slog.Logger) *Executor {
	return &Executor{
		policy:   policy.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Run executes fn under the operation's breaker and retry policy. A nil
// classifier treats every failure as permanent but breaker-visible.
func (e *Executor) Run(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = permanentClassifier
	}

	if !e.policy.Breaker.Enabled {
		return e.retry(ctx, op, classify, fn)
	}

	breaker := e.breaker(op, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.retry(ctx, op, classify, fn)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	backoff := e.policy.Retry.InitialBackoff

	var err error
	for attempt := 1; attempt <= e.policy.Retry.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if verdict := classify(err); !verdict.Retry || attempt == e.policy.Retry.MaxAttempts {
			return err
		}

		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.policy.Retry.MaxAttempts,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * e.policy.Retry.Multiplier)
		if backoff > e.policy.Retry.MaxBackoff {
			backoff = e.policy.Retry.MaxBackoff
		}
	}
	return err
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[operation]; ok {
		return b
	}

	cfg := e.policy.Breaker
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).CountFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change",
				"operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = b
	return b
}

// IsCircuitOpen reports whether the error came from the breaker itself rather
// than the wrapped operation.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func permanentClassifier(error) Classification {
	return Classification{Retry: false, CountFailure: true}
}
