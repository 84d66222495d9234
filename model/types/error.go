package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrGraph             = errors.New("graph error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
)

// ValidationError reports malformed construction input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// GraphErrorKind classifies a GraphError.
type GraphErrorKind string

const (
	GraphErrorSequence          GraphErrorKind = "sequence"
	GraphErrorDuplicate         GraphErrorKind = "duplicate"
	GraphErrorUnknownDependency GraphErrorKind = "unknownDependency"
	GraphErrorSelfDependency    GraphErrorKind = "selfDependency"
	GraphErrorCycle             GraphErrorKind = "cycle"
)

// GraphError reports a malformed step graph. Order is set for sequencing
// violations, Cycle lists the step ids on a detected cycle with the first id
// repeated at the end.
type GraphError struct {
	Kind       GraphErrorKind
	StepID     string
	Dependency string
	Order      int
	Cycle      []string
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case GraphErrorSequence:
		return fmt.Sprintf("graph error: step order %d breaks contiguous sequence", e.Order)
	case GraphErrorDuplicate:
		return fmt.Sprintf("graph error: duplicate step id %s", e.StepID)
	case GraphErrorUnknownDependency:
		return fmt.Sprintf("graph error: step %s depends on unknown step %s", e.StepID, e.Dependency)
	case GraphErrorSelfDependency:
		return fmt.Sprintf("graph error: step %s depends on itself", e.StepID)
	case GraphErrorCycle:
		return "graph error: dependency cycle " + strings.Join(e.Cycle, " → ")
	}
	return "graph error: " + string(e.Kind)
}

func (e *GraphError) Is(target error) bool { return target == ErrGraph }

// Contains reports whether stepID participates in the reported cycle.
func (e *GraphError) Contains(stepID string) bool {
	for _, id := range e.Cycle {
		if id == stepID {
			return true
		}
	}
	return e.StepID == stepID
}

// InvalidTransitionError reports a state change attempted from the wrong state.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// AlreadyRegisteredError reports a duplicate registration.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("%s is already registered", e.Name)
}

func (e *AlreadyRegisteredError) Is(target error) bool { return target == ErrAlreadyRegistered }

// NotRegisteredError reports a lookup of an unknown name.
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s is not registered", e.Name)
}

func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }
