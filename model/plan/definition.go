package plan

// Definition is the declarative form of a plan as written in YAML or JSON
// definition files.
type Definition struct {
	ID        string  `json:"id,omitempty" yaml:"id,omitempty"`
	Objective string  `json:"objective" yaml:"objective"`
	Steps     []*Step `json:"steps" yaml:"steps"`
}

// Build validates the definition and returns a new pending plan. Steps
// without an order take their position in the list. Runtime state written
// in the definition is discarded.
func (d *Definition) Build() (*Plan, error) {
	steps := make([]*Step, len(d.Steps))
	for i, step := range d.Steps {
		if step == nil {
			continue
		}
		c := step.Clone()
		if c.Order == 0 {
			c.Order = i + 1
		}
		c.Status = StepPending
		c.ApprovalRequestID = ""
		c.Error = ""
		c.StartedAt = nil
		c.CompletedAt = nil
		steps[i] = c
	}
	return New(d.Objective, steps, WithID(d.ID))
}
