package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/policy"
)

// DecisionFunc decides what to do with a pending request.
// Return (true,  "", true) to approve,
//
//	(false, "…", true) to reject with reason,
//	(_, _, false) to leave it pending.
type DecisionFunc func(r *Request) (approved bool, reason string, decided bool)

// AutoDecider starts a goroutine that polls ListPending and applies fn to
// every request. It returns stop() – call it (or cancel ctx) to exit.
func AutoDecider(ctx context.Context,
	svc Service,
	fn DecisionFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				reqs, _ := svc.ListPending(ctx)
				for _, r := range reqs {
					ok, reason, decided := fn(r)
					if !decided {
						continue
					}
					_, _ = svc.Decide(ctx, r.ID, ok, reason)
				}
			}
		}
	}()
	return func() {
		select {
		case <-done:
		default:
			close(done)
		}
		<-stopped
	}
}

// AutoApprove automatically approves all pending requests
func AutoApprove(ctx context.Context, svc Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (bool, string, bool) { return true, "", true }, interval)
}

// AutoReject automatically rejects all pending requests with the given reason
func AutoReject(ctx context.Context, svc Service, reason string, interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (bool, string, bool) { return false, reason, true }, interval)
}

// PolicyDecider decides pending requests with p; deferred requests stay pending.
func PolicyDecider(ctx context.Context, svc Service, p *policy.Policy, interval time.Duration) func() {
	return AutoDecider(ctx, svc, func(r *Request) (bool, string, bool) {
		outcome, reason := p.Evaluate(ctx, string(r.Category), r.Summary)
		switch outcome {
		case policy.OutcomeApprove:
			return true, "", true
		case policy.OutcomeReject:
			return false, reason, true
		}
		return false, "", false
	}, interval)
}

// WaitForDecision polls the request until it leaves PENDING, its deadline
// passes, or timeout elapses.
func WaitForDecision(ctx context.Context, svc Service, id string, timeout time.Duration) (*Request, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		r, err := svc.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.Status != StatusPending || r.IsExpired(clock.Now()) {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for decision on %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
