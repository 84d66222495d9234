package fluxgate

import (
	"context"
	"sync"
	"time"

	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/event"
	"github.com/viant/fluxgate/service/watchdog"
)

// Unit names registered with the supervisor.
const (
	UnitOrchestrator  = "orchestrator"
	UnitApprovalQueue = "approval-queue"
	UnitApprovalEvent = "approval-events"
	UnitPolicy        = "approval-policy"
)

const policyInterval = time.Second

// Runtime runs the orchestrator, the approval queue, the approval event
// listener and the optional policy decider as watchdog supervised units.
type Runtime struct {
	service    *Service
	mu         sync.Mutex
	registered bool
}

// Start registers the units once and begins monitoring. Units run until
// Shutdown or until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		if err := r.register(); err != nil {
			return err
		}
		r.registered = true
	}
	return r.service.supervisor.StartMonitoring(ctx)
}

// Shutdown stops monitoring; every unit is cancelled with it.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		return nil
	}
	return r.service.supervisor.StopMonitoring()
}

// IsRunning reports whether the supervisor is monitoring.
func (r *Runtime) IsRunning() bool {
	return r.service.supervisor.IsMonitoring()
}

func (r *Runtime) register() error {
	s := r.service
	if err := s.supervisor.RegisterUnit(UnitOrchestrator, s.orchestrator.Unit()); err != nil {
		return err
	}
	queue := newLoopUnit(s.config.Approval.QueueInterval, func(ctx context.Context) error {
		_, err := s.approvals.ProcessQueue(ctx, s.executors)
		return err
	}, s.logger.With("unit", UnitApprovalQueue))
	if err := s.supervisor.RegisterUnit(UnitApprovalQueue, queue); err != nil {
		return err
	}
	handler := s.eventHandler
	if handler == nil {
		handler = func(ctx context.Context, e *approval.Event) error {
			s.logger.Debug("approval event", "topic", e.Topic, "request", e.Request.ID, "status", e.Request.Status)
			return nil
		}
	}
	listener := event.NewListener[approval.Event](s.events, handler, event.WithLogger(s.logger.With("unit", UnitApprovalEvent)))
	if err := s.supervisor.RegisterUnit(UnitApprovalEvent, listener); err != nil {
		return err
	}
	if s.policy == nil {
		return nil
	}
	decider := &policyUnit{svc: s.approvals, interval: policyInterval, start: func(ctx context.Context, svc approval.Service, interval time.Duration) func() {
		return approval.PolicyDecider(ctx, svc, s.policy, interval)
	}}
	return s.supervisor.RegisterUnit(UnitPolicy, decider)
}

var _ watchdog.Unit = (*policyUnit)(nil)
