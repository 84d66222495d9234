package plan

// Status represents the lifecycle state of a Plan.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusPaused     Status = "PAUSED"
)

// IsOpen reports whether the plan still has work a driver can advance.
func (s Status) IsOpen() bool {
	return s != StatusCompleted && s != StatusFailed
}

// StepStatus represents the lifecycle state of a Step.
type StepStatus string

const (
	StepPending          StepStatus = "PENDING"
	StepInProgress       StepStatus = "IN_PROGRESS"
	StepCompleted        StepStatus = "COMPLETED"
	StepFailed           StepStatus = "FAILED"
	StepSkipped          StepStatus = "SKIPPED"
	StepAwaitingApproval StepStatus = "AWAITING_APPROVAL"
)

// IsTerminal reports whether no further transition is permitted.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepSkipped
}

// IsResolved reports whether the step counts as done for plan completion.
func (s StepStatus) IsResolved() bool {
	return s.IsTerminal()
}

// IsWaiting reports whether the step may be picked up once its dependencies complete.
func (s StepStatus) IsWaiting() bool {
	return s == StepPending || s == StepAwaitingApproval
}
