package approval

import (
	"context"

	"github.com/viant/fluxgate/service/messaging"
)

// Service defines the approval ledger contract.
type Service interface {
	Create(ctx context.Context, id string, category Category, payload Payload, summary string, options ...RequestOption) (*Request, error)
	Load(ctx context.Context, id string) (*Request, error)
	Approve(ctx context.Context, id string) (*Request, error)
	Reject(ctx context.Context, id string, reason string) (*Request, error)
	Decide(ctx context.Context, id string, approved bool, reason string) (*Request, error)
	Expire(ctx context.Context, id string) (*Request, error)
	Execute(ctx context.Context, id string, executor Executor) (*Request, error)
	List(ctx context.Context, statuses ...Status) ([]*Request, error)
	ListPending(ctx context.Context) ([]*Request, error)
	ProcessQueue(ctx context.Context, executor Executor) (*QueueResult, error)
	Queue() messaging.Queue[Event]
}
