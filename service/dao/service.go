package dao

import (
	"context"
)

// Service is the generic persistence contract used for plans and approval
// requests. List accepts optional filter parameters, see criteria.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// KeyFunc extracts the entity key.
type KeyFunc[K comparable, T any] func(t *T) K

// StatusFunc extracts the entity status used by status filters.
type StatusFunc[T any] func(t *T) string
