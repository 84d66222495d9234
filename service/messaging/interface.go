package messaging

import (
	"context"
)

// Queue carries payloads of type T between a publisher and its consumers.
// The ledger publishes approval lifecycle events on it.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack reports a processing failure; the queue decides on redelivery
	Nack(err error) error
}
