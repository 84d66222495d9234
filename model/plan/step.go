package plan

import "time"

type (
	// Action describes the side effect a step performs once it is allowed to run.
	// Category names the approval category, Input is decoded by the category's payload type.
	Action struct {
		Category string                 `json:"category,omitempty" yaml:"category,omitempty"`
		Input    map[string]interface{} `json:"input,omitempty" yaml:"input,omitempty"`
	}

	// Step is a single unit of work within a Plan.
	Step struct {
		ID                string     `json:"id" yaml:"id"`
		PlanID            string     `json:"planId,omitempty" yaml:"planId,omitempty"`
		Order             int        `json:"order" yaml:"order"`
		Description       string     `json:"description,omitempty" yaml:"description,omitempty"`
		Status            StepStatus `json:"status,omitempty" yaml:"status,omitempty"`
		RequiresApproval  bool       `json:"requiresApproval,omitempty" yaml:"requiresApproval,omitempty"`
		Dependencies      []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
		ApprovalRequestID string     `json:"approvalRequestId,omitempty" yaml:"approvalRequestId,omitempty"`
		Action            *Action    `json:"action,omitempty" yaml:"action,omitempty"`
		Error             string     `json:"error,omitempty" yaml:"error,omitempty"`
		StartedAt         *time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
		CompletedAt       *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	}
)

// NewStep creates a pending step with the given order.
func NewStep(id string, order int, description string) *Step {
	return &Step{ID: id, Order: order, Description: description, Status: StepPending}
}

// WithApproval marks the step as gated behind an approval request.
func (s *Step) WithApproval() *Step {
	s.RequiresApproval = true
	return s
}

// WithDependencies appends dependency step ids.
func (s *Step) WithDependencies(ids ...string) *Step {
	s.Dependencies = append(s.Dependencies, ids...)
	return s
}

// WithAction sets the step action.
func (s *Step) WithAction(category string, input map[string]interface{}) *Step {
	s.Action = &Action{Category: category, Input: input}
	return s
}

// DependsOn reports whether id is a direct dependency.
func (s *Step) DependsOn(id string) bool {
	for _, dep := range s.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	ret := *s
	ret.Dependencies = append([]string(nil), s.Dependencies...)
	if s.Action != nil {
		action := *s.Action
		if s.Action.Input != nil {
			action.Input = make(map[string]interface{}, len(s.Action.Input))
			for k, v := range s.Action.Input {
				action.Input[k] = v
			}
		}
		ret.Action = &action
	}
	return &ret
}
