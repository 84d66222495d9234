package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/internal/keylock"
	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/store"
	"github.com/viant/fluxgate/service/messaging"
	"github.com/viant/fluxgate/tracing"
)

// Service is a store backed approval ledger. Mutations of one request are
// serialised by a per-id lock; callers always receive copies.
type Service struct {
	store   dao.Service[string, approval.Request]
	events  messaging.Queue[approval.Event]
	locks   *keylock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// RequestKey selects the store key of a request.
func RequestKey(r *approval.Request) string { return r.ID }

// RequestStatus selects the status used by store filters.
func RequestStatus(r *approval.Request) string { return string(r.Status) }

// NewMemoryStore returns an in-memory request store.
func NewMemoryStore() dao.Service[string, approval.Request] {
	return store.NewMemoryStore[string, approval.Request](RequestKey, RequestStatus)
}

// New creates a ledger.
func New(options ...Option) *Service {
	ret := &Service{
		locks:  keylock.New(),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.store == nil {
		ret.store = NewMemoryStore()
	}
	return ret
}

// Create validates and persists a new PENDING request.
func (s *Service) Create(ctx context.Context, id string, category approval.Category, payload approval.Payload, summary string, options ...approval.RequestOption) (*approval.Request, error) {
	r, err := approval.NewRequest(id, category, payload, summary, options...)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(r.ID)
	defer unlock()
	if _, err := s.store.Load(ctx, r.ID); err == nil {
		return nil, types.NewValidationError("id", "request %s already exists", r.ID)
	} else if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	if err := s.save(ctx, r, approval.TopicRequestCreated); err != nil {
		return nil, err
	}
	s.logger.Info("approval requested", "id", r.ID, "category", r.Category, "expiresAt", r.ExpiresAt)
	return r.Clone(), nil
}

// Load returns a copy of the stored request.
func (s *Service) Load(ctx context.Context, id string) (*approval.Request, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	return r.Clone(), nil
}

// Approve approves a live PENDING request. A request past its deadline is
// marked EXPIRED instead and the call fails with an InvalidTransitionError.
func (s *Service) Approve(ctx context.Context, id string) (*approval.Request, error) {
	return s.decide(ctx, id, approval.StatusApproved, func(r *approval.Request, now time.Time) error {
		return r.Approve(now)
	})
}

// Reject rejects a live PENDING request.
func (s *Service) Reject(ctx context.Context, id string, reason string) (*approval.Request, error) {
	return s.decide(ctx, id, approval.StatusRejected, func(r *approval.Request, now time.Time) error {
		return r.Reject(now, reason)
	})
}

// Decide approves or rejects depending on approved.
func (s *Service) Decide(ctx context.Context, id string, approved bool, reason string) (*approval.Request, error) {
	if approved {
		return s.Approve(ctx, id)
	}
	return s.Reject(ctx, id, reason)
}

// Expire persists the EXPIRED status of a PENDING request past its deadline.
func (s *Service) Expire(ctx context.Context, id string) (*approval.Request, error) {
	return s.withRequest(ctx, id, func(r *approval.Request) error {
		if err := r.Expire(clock.Now()); err != nil {
			return err
		}
		s.logger.Info("approval expired", "id", r.ID, "category", r.Category)
		return s.save(ctx, r, approval.TopicRequestExpired)
	})
}

// Execute runs executor on an APPROVED request. A failed execution is
// persisted with its error and the request stays APPROVED.
func (s *Service) Execute(ctx context.Context, id string, executor approval.Executor) (*approval.Request, error) {
	return s.withRequest(ctx, id, func(r *approval.Request) error {
		ctx, span := tracing.StartSpan(ctx, "approval.execute", tracing.KindClient)
		span.WithAttributes(map[string]string{"request.id": r.ID, "request.category": string(r.Category)})
		started := time.Now()
		err := r.Execute(ctx, executor)
		defer func() { tracing.EndSpan(span, err) }()
		if errors.Is(err, types.ErrInvalidTransition) {
			return err
		}
		took := time.Since(started)
		if err != nil {
			kind := types.Classify(err)
			s.metrics.RecordExecution(string(r.Category), string(kind), took)
			s.logger.Warn("approved action failed", "id", r.ID, "category", r.Category, "attempt", r.Attempts, "kind", kind, "error", err)
			if saveErr := s.save(ctx, r, approval.TopicRequestFailed); saveErr != nil {
				return errors.Join(err, saveErr)
			}
			return err
		}
		s.metrics.RecordExecution(string(r.Category), "success", took)
		s.logger.Info("approved action executed", "id", r.ID, "category", r.Category, "result", r.Result)
		err = s.save(ctx, r, approval.TopicRequestExecuted)
		return err
	})
}

// List returns requests with any of statuses, or every request when none is given.
func (s *Service) List(ctx context.Context, statuses ...approval.Status) ([]*approval.Request, error) {
	var parameters []*dao.Parameter
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		parameters = append(parameters, dao.WithStatus(values...))
	}
	requests, err := s.store.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	ret := make([]*approval.Request, 0, len(requests))
	for _, r := range requests {
		ret = append(ret, r.Clone())
	}
	return ret, nil
}

// ListPending returns PENDING requests that have not yet expired.
func (s *Service) ListPending(ctx context.Context) ([]*approval.Request, error) {
	requests, err := s.List(ctx, approval.StatusPending)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	ret := requests[:0]
	for _, r := range requests {
		if !r.IsExpired(now) {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

// ProcessQueue expires overdue PENDING requests and executes every APPROVED
// one. Execution failures are counted, not returned.
func (s *Service) ProcessQueue(ctx context.Context, executor approval.Executor) (result *approval.QueueResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "approval.processQueue", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	result = &approval.QueueResult{}

	pending, err := s.store.List(ctx, dao.WithStatus(string(approval.StatusPending)))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	now := clock.Now()
	for _, r := range pending {
		if !r.IsExpired(now) {
			continue
		}
		switch _, expErr := s.Expire(ctx, r.ID); {
		case expErr == nil:
			result.Expired++
		case !errors.Is(expErr, types.ErrInvalidTransition):
			return result, expErr
		}
	}

	approved, err := s.store.List(ctx, dao.WithStatus(string(approval.StatusApproved)))
	if err != nil {
		return result, fmt.Errorf("failed to list approved requests: %w", err)
	}
	for _, r := range approved {
		if err = ctx.Err(); err != nil {
			return result, err
		}
		switch _, execErr := s.Execute(ctx, r.ID, executor); {
		case execErr == nil:
			result.Executed++
		case errors.Is(execErr, types.ErrInvalidTransition):
		default:
			result.Failed++
		}
	}
	span.WithInt("executed", result.Executed).WithInt("failed", result.Failed).WithInt("expired", result.Expired)
	s.metrics.RecordQueue(result.Executed, result.Failed, result.Expired)
	if result.Executed+result.Failed+result.Expired > 0 {
		s.logger.Info("approval queue processed", "executed", result.Executed, "failed", result.Failed, "expired", result.Expired)
	}
	return result, nil
}

// Queue returns the event queue, nil when events are disabled.
func (s *Service) Queue() messaging.Queue[approval.Event] { return s.events }

func (s *Service) decide(ctx context.Context, id string, to approval.Status, apply func(r *approval.Request, now time.Time) error) (*approval.Request, error) {
	return s.withRequest(ctx, id, func(r *approval.Request) error {
		now := clock.Now()
		if r.IsExpired(now) {
			_ = r.Expire(now)
			if err := s.save(ctx, r, approval.TopicRequestExpired); err != nil {
				return err
			}
			return &types.InvalidTransitionError{Entity: "request", ID: r.ID, From: string(approval.StatusExpired), To: string(to)}
		}
		if err := apply(r, now); err != nil {
			return err
		}
		topic := approval.TopicRequestApproved
		if to == approval.StatusRejected {
			topic = approval.TopicRequestRejected
		}
		s.logger.Info("approval decided", "id", r.ID, "category", r.Category, "status", r.Status, "reason", r.Reason)
		return s.save(ctx, r, topic)
	})
}

// withRequest locks id, loads a copy of the request and hands it to fn. The
// copy is returned even when fn fails so callers can inspect its state.
func (s *Service) withRequest(ctx context.Context, id string, fn func(r *approval.Request) error) (*approval.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	stored, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	r := stored.Clone()
	if err := fn(r); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Service) save(ctx context.Context, r *approval.Request, topic string) error {
	if err := s.store.Save(ctx, r.Clone()); err != nil {
		return fmt.Errorf("failed to save request %s: %w", r.ID, err)
	}
	if topic != approval.TopicRequestFailed {
		s.metrics.RecordTransition(string(r.Category), string(r.Status))
	}
	if s.events != nil {
		event := &approval.Event{Topic: topic, Request: r.Clone()}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Debug("approval event dropped", "topic", topic, "id", r.ID, "error", err)
		}
	}
	return nil
}

var _ approval.Service = (*Service)(nil)
