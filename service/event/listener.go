// Package event drains a messaging queue into a handler, for example to log
// or forward approval lifecycle events.
package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/viant/fluxgate/service/messaging"
)

// Handler processes one event. A returned error nacks the message.
type Handler[T any] func(ctx context.Context, event *T) error

// Listener consumes events until its context ends. It satisfies the
// watchdog unit contract so it can be supervised like any other loop.
type Listener[T any] struct {
	queue   messaging.Queue[T]
	handler Handler[T]
	logger  *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  atomic.Int32
	handled  atomic.Int64
	failures atomic.Int64
}

// NewListener creates a listener for queue.
func NewListener[T any](queue messaging.Queue[T], handler Handler[T], opts ...Option) *Listener[T] {
	o := &options{logger: slog.Default()}
	for _, option := range opts {
		option(o)
	}
	return &Listener[T]{queue: queue, handler: handler, logger: o.logger}
}

// Start stops any previous consumer and launches a new one bound to ctx.
func (l *Listener[T]) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running.Add(1)
	go l.run(runCtx)
	return nil
}

// Stop cancels the consumer.
func (l *Listener[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// HealthCheck reports whether a consumer goroutine is running.
func (l *Listener[T]) HealthCheck(ctx context.Context) (bool, error) {
	return l.running.Load() > 0, nil
}

// Handled returns how many events were processed successfully.
func (l *Listener[T]) Handled() int64 { return l.handled.Load() }

// Failures returns how many events the handler rejected.
func (l *Listener[T]) Failures() int64 { return l.failures.Load() }

func (l *Listener[T]) run(ctx context.Context) {
	defer l.running.Add(-1)
	for {
		msg, err := l.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			l.logger.Warn("failed to consume event", "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		if err = l.handle(ctx, msg.T()); err != nil {
			l.failures.Add(1)
			l.logger.Debug("event handler failed", "error", err)
			_ = msg.Nack(err)
			continue
		}
		l.handled.Add(1)
		_ = msg.Ack()
	}
}

func (l *Listener[T]) handle(ctx context.Context, event *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("event handler panic")
		}
	}()
	return l.handler(ctx, event)
}
