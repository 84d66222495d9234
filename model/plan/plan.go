package plan

import (
	"sort"
	"time"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/internal/idgen"
	"github.com/viant/fluxgate/model/types"
)

// Plan decomposes an objective into ordered, dependency constrained steps.
type Plan struct {
	ID        string    `json:"id" yaml:"id"`
	Objective string    `json:"objective" yaml:"objective"`
	Steps     []*Step   `json:"steps" yaml:"steps"`
	Status    Status    `json:"status" yaml:"status"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Option customises plan construction.
type Option func(p *Plan)

// WithID sets the plan id instead of generating one.
func WithID(id string) Option {
	return func(p *Plan) {
		if id != "" {
			p.ID = id
		}
	}
}

// New validates steps and builds a pending plan. Steps are copied; empty
// step ids are generated. Nothing is returned when validation fails.
func New(objective string, steps []*Step, options ...Option) (*Plan, error) {
	now := clock.Now()
	ret := &Plan{
		ID:        idgen.New(),
		Objective: objective,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, option := range options {
		option(ret)
	}
	cloned := make([]*Step, 0, len(steps))
	for _, step := range steps {
		if step == nil {
			return nil, types.NewValidationError("steps", "nil step")
		}
		c := step.Clone()
		if c.ID == "" {
			c.ID = idgen.New()
		}
		if c.Status == "" {
			c.Status = StepPending
		}
		c.PlanID = ret.ID
		cloned = append(cloned, c)
	}
	if err := validate(cloned); err != nil {
		return nil, err
	}
	sort.SliceStable(cloned, func(i, j int) bool { return cloned[i].Order < cloned[j].Order })
	ret.Steps = cloned
	return ret, nil
}

// Validate re-runs the construction checks, typically after loading from a store.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return types.NewValidationError("id", "plan id is empty")
	}
	return validate(p.Steps)
}

// Step returns the step with the given id or nil.
func (p *Plan) Step(id string) *Step {
	for _, step := range p.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

// AddStep appends a pending step at the next order. The plan is left
// unchanged when the new step breaks the graph.
func (p *Plan) AddStep(description string, requiresApproval bool, dependencies ...string) (*Step, error) {
	step := &Step{
		ID:               idgen.New(),
		PlanID:           p.ID,
		Order:            len(p.Steps) + 1,
		Description:      description,
		Status:           StepPending,
		RequiresApproval: requiresApproval,
		Dependencies:     append([]string(nil), dependencies...),
	}
	p.Steps = append(p.Steps, step)
	if err := validate(p.Steps); err != nil {
		p.Steps = p.Steps[:len(p.Steps)-1]
		return nil, err
	}
	p.refresh()
	return step, nil
}

// IsReady reports whether step is waiting and all its dependencies completed.
func (p *Plan) IsReady(step *Step) bool {
	if step == nil || !step.Status.IsWaiting() {
		return false
	}
	for _, dep := range step.Dependencies {
		candidate := p.Step(dep)
		if candidate == nil || candidate.Status != StepCompleted {
			return false
		}
	}
	return true
}

// CurrentStep returns the first in-progress step by order, otherwise the
// first ready step, otherwise nil.
func (p *Plan) CurrentStep() *Step {
	for _, step := range p.Steps {
		if step.Status == StepInProgress {
			return step
		}
	}
	for _, step := range p.Steps {
		if p.IsReady(step) {
			return step
		}
	}
	return nil
}

// ReadySteps returns every ready step in order.
func (p *Plan) ReadySteps() []*Step {
	var ret []*Step
	for _, step := range p.Steps {
		if p.IsReady(step) {
			ret = append(ret, step)
		}
	}
	return ret
}

// IsBlocked reports whether any step awaits approval or has failed.
func (p *Plan) IsBlocked() bool {
	for _, step := range p.Steps {
		if step.Status == StepAwaitingApproval || step.Status == StepFailed {
			return true
		}
	}
	return false
}

// Progress returns the completed and total step counts. Skipped steps count
// toward the total only.
func (p *Plan) Progress() (completed, total int) {
	for _, step := range p.Steps {
		if step.Status == StepCompleted {
			completed++
		}
	}
	return completed, len(p.Steps)
}

// StartStep moves a ready step to IN_PROGRESS.
func (p *Plan) StartStep(id string) error {
	step, err := p.transition(id, StepInProgress, StepPending, StepAwaitingApproval)
	if err != nil {
		return err
	}
	if !p.dependenciesCompleted(step) {
		return &types.InvalidTransitionError{Entity: "step", ID: id, From: string(step.Status) + " (dependencies pending)", To: string(StepInProgress)}
	}
	now := clock.Now()
	step.Status = StepInProgress
	step.StartedAt = &now
	step.Error = ""
	p.refresh()
	return nil
}

// CompleteStep marks a started or approval gated step COMPLETED. A FAILED
// step linked to an approval request may also complete, since its action
// can still execute through the approval queue.
func (p *Plan) CompleteStep(id string) error {
	step, err := p.transition(id, StepCompleted, StepInProgress, StepAwaitingApproval, StepFailed)
	if err != nil {
		return err
	}
	if step.Status == StepFailed && step.ApprovalRequestID == "" {
		return &types.InvalidTransitionError{Entity: "step", ID: id, From: string(step.Status), To: string(StepCompleted)}
	}
	now := clock.Now()
	step.Status = StepCompleted
	step.CompletedAt = &now
	step.Error = ""
	p.refresh()
	return nil
}

// FailStep marks a non terminal step FAILED with reason.
func (p *Plan) FailStep(id, reason string) error {
	step, err := p.transition(id, StepFailed, StepPending, StepInProgress, StepAwaitingApproval)
	if err != nil {
		return err
	}
	now := clock.Now()
	step.Status = StepFailed
	step.Error = reason
	step.CompletedAt = &now
	p.refresh()
	return nil
}

// SkipStep marks a step SKIPPED.
func (p *Plan) SkipStep(id string) error {
	step, err := p.transition(id, StepSkipped, StepPending, StepAwaitingApproval, StepFailed)
	if err != nil {
		return err
	}
	now := clock.Now()
	step.Status = StepSkipped
	step.CompletedAt = &now
	p.refresh()
	return nil
}

// AwaitApproval links a pending approval gated step to requestID.
func (p *Plan) AwaitApproval(id, requestID string) error {
	step, err := p.transition(id, StepAwaitingApproval, StepPending)
	if err != nil {
		return err
	}
	if !step.RequiresApproval {
		return types.NewValidationError("step", "step %s does not require approval", id)
	}
	if requestID == "" {
		return types.NewValidationError("requestID", "empty approval request id")
	}
	if step.ApprovalRequestID != "" && step.ApprovalRequestID != requestID {
		return &types.InvalidTransitionError{Entity: "step", ID: id, From: "linked to " + step.ApprovalRequestID, To: "linked to " + requestID}
	}
	step.Status = StepAwaitingApproval
	step.ApprovalRequestID = requestID
	p.refresh()
	return nil
}

// RetryStep returns a FAILED step to PENDING and drops its approval link so
// a fresh request can be issued.
func (p *Plan) RetryStep(id string) error {
	step, err := p.transition(id, StepPending, StepFailed)
	if err != nil {
		return err
	}
	step.Status = StepPending
	step.Error = ""
	step.ApprovalRequestID = ""
	step.StartedAt = nil
	step.CompletedAt = nil
	p.refresh()
	return nil
}

// Abort marks the plan FAILED. Aborted plans accept no further step transitions.
func (p *Plan) Abort(reason string) {
	p.Status = StatusFailed
	p.Error = reason
	p.UpdatedAt = clock.Now()
}

func (p *Plan) transition(id string, to StepStatus, allowed ...StepStatus) (*Step, error) {
	if p.Status == StatusFailed {
		return nil, &types.InvalidTransitionError{Entity: "plan", ID: p.ID, From: string(p.Status), To: string(to)}
	}
	step := p.Step(id)
	if step == nil {
		return nil, types.NewValidationError("stepID", "unknown step %s", id)
	}
	for _, candidate := range allowed {
		if step.Status == candidate {
			return step, nil
		}
	}
	return nil, &types.InvalidTransitionError{Entity: "step", ID: id, From: string(step.Status), To: string(to)}
}

func (p *Plan) dependenciesCompleted(step *Step) bool {
	for _, dep := range step.Dependencies {
		if candidate := p.Step(dep); candidate == nil || candidate.Status != StepCompleted {
			return false
		}
	}
	return true
}

// refresh recomputes the plan status from its steps.
func (p *Plan) refresh() {
	p.UpdatedAt = clock.Now()
	if p.Status == StatusFailed {
		return
	}
	resolved, started := 0, 0
	for _, step := range p.Steps {
		if step.Status.IsResolved() {
			resolved++
		}
		if step.Status != StepPending {
			started++
		}
	}
	switch {
	case len(p.Steps) > 0 && resolved == len(p.Steps):
		p.Status = StatusCompleted
	case p.IsBlocked():
		p.Status = StatusPaused
	case started > 0:
		p.Status = StatusInProgress
	default:
		p.Status = StatusPending
	}
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	ret := *p
	ret.Steps = make([]*Step, len(p.Steps))
	for i, step := range p.Steps {
		ret.Steps[i] = step.Clone()
	}
	return &ret
}
