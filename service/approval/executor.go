package approval

import (
	"context"
	"fmt"

	"github.com/viant/fluxgate/model/types"
)

// Executor performs the real-world side effect of an approved request and
// returns a short human readable summary. Implementations must be safe to
// retry: a failed execution is retried on the next queue pass.
type Executor interface {
	Execute(ctx context.Context, payload Payload) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, payload Payload) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, payload Payload) (string, error) {
	return f(ctx, payload)
}

// Executors dispatches to the executor registered for the payload category.
type Executors map[Category]Executor

// Register sets the executor for category and returns the receiver.
func (e Executors) Register(category Category, executor Executor) Executors {
	e[category] = executor
	return e
}

// Execute routes payload to its category executor.
func (e Executors) Execute(ctx context.Context, payload Payload) (string, error) {
	if payload == nil {
		return "", types.NewPermanentError(fmt.Errorf("nil payload"))
	}
	executor, ok := e[payload.Category()]
	if !ok || executor == nil {
		return "", types.NewPermanentError(fmt.Errorf("no executor registered for %s", payload.Category()))
	}
	return executor.Execute(ctx, payload)
}
