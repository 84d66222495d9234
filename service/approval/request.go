package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/internal/idgen"
	"github.com/viant/fluxgate/model/types"
)

// DefaultExpiration is the approval window used when none is given.
const DefaultExpiration = 24 * time.Hour

// Request is a time-bounded record gating one side-effecting action.
type Request struct {
	ID         string            `json:"id"`
	Category   Category          `json:"category"`
	Payload    Payload           `json:"-"`
	Summary    string            `json:"summary,omitempty"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	DecidedAt  *time.Time        `json:"decidedAt,omitempty"`
	ExecutedAt *time.Time        `json:"executedAt,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
	Result     string            `json:"result,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
	PlanID     string            `json:"planId,omitempty"`
	StepID     string            `json:"stepId,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

type requestOptions struct {
	expiration time.Duration
	planID     string
	stepID     string
	meta       map[string]string
}

// RequestOption customises NewRequest.
type RequestOption func(o *requestOptions)

// WithExpiration sets the approval window.
func WithExpiration(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.expiration = d }
}

// WithExpirationHours sets the approval window in hours.
func WithExpirationHours(hours float64) RequestOption {
	return func(o *requestOptions) { o.expiration = time.Duration(hours * float64(time.Hour)) }
}

// WithStep links the request to the plan step it gates.
func WithStep(planID, stepID string) RequestOption {
	return func(o *requestOptions) {
		o.planID = planID
		o.stepID = stepID
	}
}

// WithMeta adds free-form metadata such as tenant or requester.
func WithMeta(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.meta == nil {
			o.meta = map[string]string{}
		}
		o.meta[key] = value
	}
}

// NewRequest creates a PENDING request expiring DefaultExpiration from now
// unless overridden. An empty id is generated.
func NewRequest(id string, category Category, payload Payload, summary string, options ...RequestOption) (*Request, error) {
	opts := &requestOptions{expiration: DefaultExpiration}
	for _, option := range options {
		option(opts)
	}
	if opts.expiration <= 0 {
		return nil, types.NewValidationError("expiration", "must be > 0, got %v", opts.expiration)
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}
	if payload != nil {
		if payload.Category() != category {
			return nil, types.NewValidationError("payload", "%s payload does not match category %s", payload.Category(), category)
		}
		if err := payload.Validate(); err != nil {
			return nil, err
		}
	}
	if id == "" {
		id = idgen.Prefixed("apr")
	}
	now := clock.Now()
	return &Request{
		ID:        id,
		Category:  category,
		Payload:   payload,
		Summary:   summary,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(opts.expiration),
		PlanID:    opts.planID,
		StepID:    opts.stepID,
		Meta:      opts.meta,
	}, nil
}

// IsExpired reports whether a still PENDING request is past its deadline.
func (r *Request) IsExpired(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// TimeRemaining returns the time left to decide, zero once expired or decided.
func (r *Request) TimeRemaining(now time.Time) time.Duration {
	if r.Status != StatusPending {
		return 0
	}
	if remaining := r.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// Approve moves a live PENDING request to APPROVED.
func (r *Request) Approve(now time.Time) error {
	if err := r.decidable(now, StatusApproved); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.DecidedAt = &now
	return nil
}

// Reject moves a live PENDING request to REJECTED.
func (r *Request) Reject(now time.Time, reason string) error {
	if err := r.decidable(now, StatusRejected); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.Reason = reason
	r.DecidedAt = &now
	return nil
}

// Expire persists the lazy expiry of a PENDING request past its deadline.
func (r *Request) Expire(now time.Time) error {
	if !r.IsExpired(now) {
		return r.transitionError(StatusExpired)
	}
	r.Status = StatusExpired
	r.DecidedAt = &now
	return nil
}

// Execute runs executor once on an APPROVED request. Success moves the
// request to EXECUTED; failure records the error and keeps it APPROVED.
func (r *Request) Execute(ctx context.Context, executor Executor) (err error) {
	if r.Status != StatusApproved {
		return r.transitionError(StatusExecuted)
	}
	if executor == nil {
		return types.NewPermanentError(fmt.Errorf("no executor for request %s", r.ID))
	}
	r.Attempts++
	defer func() {
		if p := recover(); p != nil {
			err = types.NewPermanentError(fmt.Errorf("executor panic: %v", p))
			r.Error = err.Error()
		}
	}()
	summary, err := executor.Execute(ctx, r.Payload)
	if err != nil {
		r.Error = err.Error()
		return fmt.Errorf("failed to execute request %s: %w", r.ID, err)
	}
	now := clock.Now()
	r.Status = StatusExecuted
	r.ExecutedAt = &now
	r.Result = summary
	r.Error = ""
	return nil
}

func (r *Request) decidable(now time.Time, to Status) error {
	if r.Status != StatusPending {
		return r.transitionError(to)
	}
	if r.IsExpired(now) {
		return &types.InvalidTransitionError{Entity: "request", ID: r.ID, From: string(StatusExpired), To: string(to)}
	}
	return nil
}

func (r *Request) transitionError(to Status) error {
	return &types.InvalidTransitionError{Entity: "request", ID: r.ID, From: string(r.Status), To: string(to)}
}

// Clone returns a copy safe to mutate; the payload is shared as it is never mutated.
func (r *Request) Clone() *Request {
	ret := *r
	if r.Meta != nil {
		ret.Meta = make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			ret.Meta[k] = v
		}
	}
	return &ret
}

type requestJSON Request

// MarshalJSON encodes the payload next to its category.
func (r Request) MarshalJSON() ([]byte, error) {
	var payload json.RawMessage
	if r.Payload != nil {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, err
		}
		payload = data
	}
	return json.Marshal(&struct {
		*requestJSON
		Payload json.RawMessage `json:"payload,omitempty"`
	}{requestJSON: (*requestJSON)(&r), Payload: payload})
}

// UnmarshalJSON decodes the payload into the category's concrete type.
func (r *Request) UnmarshalJSON(data []byte) error {
	aux := &struct {
		*requestJSON
		Payload json.RawMessage `json:"payload,omitempty"`
	}{requestJSON: (*requestJSON)(r)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	payload, err := DecodePayload(r.Category, aux.Payload)
	if err != nil {
		return err
	}
	r.Payload = payload
	return nil
}
