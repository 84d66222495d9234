package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/internal/keylock"
	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/model/plan"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/store"
	"github.com/viant/fluxgate/tracing"
)

// Service advances plans stored in a dao.Service. Moves on one plan are
// serialised; different plans may be advanced concurrently.
type Service struct {
	config   Config
	plans    dao.Service[string, plan.Plan]
	ledger   approval.Service
	executor approval.Executor
	locks    *keylock.Locker
	logger   *slog.Logger
	metrics  *metrics.Metrics

	loops     atomic.Int32
	lastTick  atomic.Int64
	runMu     sync.Mutex
	runCancel context.CancelFunc
}

// PlanKey selects the store key of a plan.
func PlanKey(p *plan.Plan) string { return p.ID }

// PlanStatus selects the status used by store filters.
func PlanStatus(p *plan.Plan) string { return string(p.Status) }

// NewMemoryStore returns an in-memory plan store.
func NewMemoryStore() dao.Service[string, plan.Plan] {
	return store.NewMemoryStore[string, plan.Plan](PlanKey, PlanStatus)
}

// New creates an orchestrator; executor performs step actions, both gated and ungated.
func New(plans dao.Service[string, plan.Plan], ledger approval.Service, executor approval.Executor, options ...Option) *Service {
	ret := &Service{
		config:   DefaultConfig(),
		plans:    plans,
		ledger:   ledger,
		executor: executor,
		locks:    keylock.New(),
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.plans == nil {
		ret.plans = NewMemoryStore()
	}
	return ret
}

// Submit builds and persists a plan.
func (s *Service) Submit(ctx context.Context, objective string, steps []*plan.Step, options ...plan.Option) (*plan.Plan, error) {
	p, err := plan.New(objective, steps, options...)
	if err != nil {
		return nil, err
	}
	if err = s.plans.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save plan %s: %w", p.ID, err)
	}
	s.logger.Info("plan submitted", "plan", p.ID, "objective", objective, "steps", len(p.Steps))
	return p.Clone(), nil
}

// Load returns a copy of a stored plan.
func (s *Service) Load(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.plans.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", id, err)
	}
	if err = p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stored plan %s: %w", id, err)
	}
	return p.Clone(), nil
}

// Abort fails a plan; no further step moves are made.
func (s *Service) Abort(ctx context.Context, id, reason string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	p, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	p.Abort(reason)
	s.logger.Warn("plan aborted", "plan", id, "reason", reason)
	return s.plans.Save(ctx, p)
}

// Retry returns a FAILED step to PENDING. A gated step issues a fresh
// approval request on its next move unless its previous action already ran.
func (s *Service) Retry(ctx context.Context, planID, stepID string) error {
	return s.update(ctx, planID, stepID, func(p *plan.Plan, step *plan.Step) error {
		if step.ApprovalRequestID != "" {
			request, err := s.ledger.Load(ctx, step.ApprovalRequestID)
			if err != nil && !errors.Is(err, dao.ErrNotFound) {
				return err
			}
			if request != nil && request.Status == approval.StatusExecuted {
				return &types.InvalidTransitionError{Entity: "step", ID: step.ID, From: "approval " + string(request.Status), To: string(plan.StepPending)}
			}
		}
		return p.RetryStep(step.ID)
	})
}

// Skip marks a step SKIPPED. A pending approval request linked to the step is
// rejected so its action never runs; a step whose action is already approved
// cannot be skipped.
func (s *Service) Skip(ctx context.Context, planID, stepID string) error {
	return s.update(ctx, planID, stepID, func(p *plan.Plan, step *plan.Step) error {
		if step.ApprovalRequestID != "" && step.Status == plan.StepAwaitingApproval {
			request, err := s.ledger.Load(ctx, step.ApprovalRequestID)
			if err != nil {
				return err
			}
			switch request.Status {
			case approval.StatusPending:
				if _, err = s.ledger.Reject(ctx, request.ID, "step skipped"); err != nil {
					return err
				}
			case approval.StatusApproved, approval.StatusExecuted:
				return &types.InvalidTransitionError{Entity: "step", ID: step.ID, From: "approval " + string(request.Status), To: string(plan.StepSkipped)}
			}
		}
		return p.SkipStep(step.ID)
	})
}

func (s *Service) update(ctx context.Context, planID, stepID string, fn func(p *plan.Plan, step *plan.Step) error) error {
	unlock := s.locks.Lock(planID)
	defer unlock()
	p, err := s.Load(ctx, planID)
	if err != nil {
		return err
	}
	step := p.Step(stepID)
	if step == nil {
		return types.NewValidationError("stepID", "unknown step %s in plan %s", stepID, planID)
	}
	before := step.Status
	if err = fn(p, step); err != nil {
		return err
	}
	s.metrics.RecordStep(string(step.Status))
	s.logger.Info("step updated", "plan", p.ID, "step", step.ID, "from", before, "to", step.Status)
	return s.plans.Save(ctx, p)
}

// Advance makes one move on the plan's current step and returns a copy of
// that step, or nil when nothing can move (plan resolved or blocked).
func (s *Service) Advance(ctx context.Context, planID string) (step *plan.Step, err error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.advance", tracing.KindInternal)
	span.WithAttributes(map[string]string{"plan.id": planID})
	defer func() { tracing.EndSpan(span, err) }()

	unlock := s.locks.Lock(planID)
	defer unlock()
	p, err := s.Load(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsOpen() {
		return nil, nil
	}
	current, err := s.executedFailure(ctx, p)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = p.CurrentStep()
	}
	if current == nil {
		return nil, nil
	}
	before := current.Status
	moveErr := s.move(ctx, p, current)
	if current.Status != before {
		s.metrics.RecordStep(string(current.Status))
		s.logger.Info("step advanced", "plan", p.ID, "step", current.ID, "order", current.Order, "from", before, "to", current.Status)
	}
	if err = s.plans.Save(ctx, p); err != nil {
		return nil, errors.Join(moveErr, fmt.Errorf("failed to save plan %s: %w", p.ID, err))
	}
	return current.Clone(), moveErr
}

func (s *Service) move(ctx context.Context, p *plan.Plan, step *plan.Step) error {
	switch step.Status {
	case plan.StepPending:
		if step.RequiresApproval {
			return s.requestApproval(ctx, p, step)
		}
		if err := p.StartStep(step.ID); err != nil {
			return err
		}
		return s.runAction(ctx, p, step)
	case plan.StepAwaitingApproval:
		return s.resolveApproval(ctx, p, step)
	case plan.StepInProgress:
		if step.RequiresApproval && step.ApprovalRequestID != "" {
			return s.resolveApproval(ctx, p, step)
		}
		return s.runAction(ctx, p, step)
	case plan.StepFailed:
		return s.resolveApproval(ctx, p, step)
	}
	return nil
}

// executedFailure returns a FAILED step whose linked approval request has
// since been executed by the approval queue.
func (s *Service) executedFailure(ctx context.Context, p *plan.Plan) (*plan.Step, error) {
	for _, step := range p.Steps {
		if step.Status != plan.StepFailed || step.ApprovalRequestID == "" {
			continue
		}
		request, err := s.ledger.Load(ctx, step.ApprovalRequestID)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if request.Status == approval.StatusExecuted {
			return step, nil
		}
	}
	return nil, nil
}

func (s *Service) requestApproval(ctx context.Context, p *plan.Plan, step *plan.Step) error {
	category, payload, err := stepPayload(p, step)
	if err != nil {
		return s.fail(p, step, err)
	}
	summary := step.Description
	if summary == "" {
		summary = fmt.Sprintf("%s: step %d", p.Objective, step.Order)
	}
	request, err := s.ledger.Create(ctx, "", category, payload, summary,
		approval.WithStep(p.ID, step.ID),
		approval.WithExpiration(s.config.ApprovalExpiration))
	if err != nil {
		return s.fail(p, step, err)
	}
	s.logger.Info("approval requested for step", "plan", p.ID, "step", step.ID, "request", request.ID, "category", category)
	return p.AwaitApproval(step.ID, request.ID)
}

// resolveApproval reads the linked request and moves the step to match it.
// Approved actions are executed by the approval queue, never here.
func (s *Service) resolveApproval(ctx context.Context, p *plan.Plan, step *plan.Step) error {
	request, err := s.ledger.Load(ctx, step.ApprovalRequestID)
	if err != nil {
		return err
	}
	if request.IsExpired(clock.Now()) {
		expired, err := s.ledger.Expire(ctx, request.ID)
		switch {
		case err == nil:
			request = expired
		case !errors.Is(err, types.ErrInvalidTransition):
			return err
		}
	}
	if request.Status == approval.StatusExecuted {
		s.logger.Debug("approved action executed", "plan", p.ID, "step", step.ID, "request", request.ID, "result", request.Result)
		return p.CompleteStep(step.ID)
	}
	if step.Status == plan.StepFailed {
		return nil
	}
	switch request.Status {
	case approval.StatusRejected:
		return s.fail(p, step, fmt.Errorf("approval %s rejected: %s", request.ID, request.Reason))
	case approval.StatusExpired:
		return s.fail(p, step, fmt.Errorf("approval %s expired", request.ID))
	case approval.StatusApproved:
		if step.Status == plan.StepAwaitingApproval {
			if err = p.StartStep(step.ID); err != nil {
				return err
			}
		}
		step.Error = request.Error
	}
	return nil
}

func (s *Service) runAction(ctx context.Context, p *plan.Plan, step *plan.Step) error {
	if step.Action == nil {
		return p.CompleteStep(step.ID)
	}
	_, payload, err := stepPayload(p, step)
	if err != nil {
		return s.fail(p, step, err)
	}
	if s.executor == nil {
		return s.fail(p, step, types.NewPermanentError(errors.New("no executor configured")))
	}
	result, err := safeExecute(ctx, s.executor, payload)
	if err != nil {
		return s.actionFailed(p, step, err)
	}
	s.logger.Debug("step action executed", "plan", p.ID, "step", step.ID, "result", result)
	return p.CompleteStep(step.ID)
}

// actionFailed keeps the step IN_PROGRESS for a retry on transient errors
// and fails it otherwise.
func (s *Service) actionFailed(p *plan.Plan, step *plan.Step, err error) error {
	if types.Classify(err) == types.FailureTransient {
		step.Error = err.Error()
		s.logger.Warn("step action failed, will retry", "plan", p.ID, "step", step.ID, "error", err)
		return err
	}
	return s.fail(p, step, err)
}

func (s *Service) fail(p *plan.Plan, step *plan.Step, cause error) error {
	s.logger.Error("step failed", "plan", p.ID, "step", step.ID, "kind", types.Classify(cause), "error", cause)
	if err := p.FailStep(step.ID, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Tick processes the approval queue, which executes approved actions, and
// then advances every open plan as far as it can go without waiting.
func (s *Service) Tick(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.tick", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	defer s.lastTick.Store(clock.Now().UnixNano())

	if s.ledger != nil {
		if _, err = s.ledger.ProcessQueue(ctx, s.executor); err != nil {
			return err
		}
	}
	open, err := s.plans.List(ctx, dao.WithStatus(string(plan.StatusPending), string(plan.StatusInProgress), string(plan.StatusPaused)))
	if err != nil {
		return fmt.Errorf("failed to list open plans: %w", err)
	}
	var errs []error
	for _, candidate := range open {
		if err = ctx.Err(); err != nil {
			return err
		}
		for moves := 0; moves <= len(candidate.Steps); moves++ {
			step, advErr := s.Advance(ctx, candidate.ID)
			if advErr != nil {
				errs = append(errs, advErr)
				break
			}
			if step == nil || !step.Status.IsResolved() {
				break
			}
		}
	}
	span.WithInt("plans", len(open))
	return errors.Join(errs...)
}

// Run ticks every polling interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.loops.Add(1)
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	defer s.loops.Add(-1)
	s.lastTick.Store(clock.Now().UnixNano())
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Warn("orchestrator tick failed", "kind", types.Classify(err), "error", err)
			}
		}
	}
}

func safeExecute(ctx context.Context, executor approval.Executor, payload approval.Payload) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = types.NewPermanentError(fmt.Errorf("executor panic: %v", p))
		}
	}()
	return executor.Execute(ctx, payload)
}

// stepPayload decodes the step action into a typed payload. Steps without
// an action are represented by a CUSTOM payload describing the step.
func stepPayload(p *plan.Plan, step *plan.Step) (approval.Category, approval.Payload, error) {
	if step.Action == nil {
		return approval.CategoryCustom, &approval.CustomPayload{
			Kind: "plan.step",
			Data: map[string]interface{}{"planId": p.ID, "stepId": step.ID, "description": step.Description},
		}, nil
	}
	category, err := approval.ParseCategory(step.Action.Category)
	if err != nil {
		return "", nil, err
	}
	payload, err := approval.PayloadFromMap(category, step.Action.Input)
	if err != nil {
		return "", nil, err
	}
	if err = payload.Validate(); err != nil {
		return "", nil, err
	}
	return category, payload, nil
}
