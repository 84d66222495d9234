package fluxgate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/service/approval"
)

// staleRuns is how many missed intervals turn a loop unhealthy.
const staleRuns = 3

// loopUnit runs fn every interval on a goroutine bound to the Start context.
type loopUnit struct {
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	loops   atomic.Int32
	lastRun atomic.Int64
}

func newLoopUnit(interval time.Duration, fn func(ctx context.Context) error, logger *slog.Logger) *loopUnit {
	return &loopUnit{interval: interval, fn: fn, logger: logger}
}

func (u *loopUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		u.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.lastRun.Store(clock.Now().UnixNano())
	u.loops.Add(1)
	go u.run(runCtx)
	return nil
}

func (u *loopUnit) run(ctx context.Context) {
	defer u.loops.Add(-1)
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.fn(ctx); err != nil && ctx.Err() == nil {
				u.logger.Warn("pass failed", "error", err)
			}
			u.lastRun.Store(clock.Now().UnixNano())
		}
	}
}

func (u *loopUnit) HealthCheck(ctx context.Context) (bool, error) {
	if u.loops.Load() <= 0 {
		return false, nil
	}
	return clock.SinceUnixNano(u.lastRun.Load()) <= staleRuns*u.interval, nil
}

// policyUnit keeps a policy decider running for as long as its context lives.
type policyUnit struct {
	svc      approval.Service
	interval time.Duration
	start    func(ctx context.Context, svc approval.Service, interval time.Duration) func()

	mu   sync.Mutex
	ctx  context.Context
	stop func()
}

func (u *policyUnit) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stop != nil {
		u.stop()
	}
	u.ctx = ctx
	u.stop = u.start(ctx, u.svc, u.interval)
	return nil
}

func (u *policyUnit) HealthCheck(ctx context.Context) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ctx != nil && u.ctx.Err() == nil, nil
}
