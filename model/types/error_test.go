package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSentinels(t *testing.T) {
	type testCase struct {
		name     string
		err      error
		sentinel error
	}

	tests := []testCase{
		{name: "validation", err: NewValidationError("expiration", "must be > 0"), sentinel: ErrValidation},
		{name: "graph", err: &GraphError{Kind: GraphErrorCycle, Cycle: []string{"a", "b", "a"}}, sentinel: ErrGraph},
		{name: "transition", err: &InvalidTransitionError{Entity: "request", ID: "x", From: "APPROVED", To: "APPROVED"}, sentinel: ErrInvalidTransition},
		{name: "already registered", err: &AlreadyRegisteredError{Name: "gmail"}, sentinel: ErrAlreadyRegistered},
		{name: "not registered", err: &NotRegisteredError{Name: "gmail"}, sentinel: ErrNotRegistered},
		{name: "wrapped", err: fmt.Errorf("failed to approve: %w", &InvalidTransitionError{}), sentinel: ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestGraphError(t *testing.T) {
	err := &GraphError{Kind: GraphErrorCycle, Cycle: []string{"a", "b", "a"}}
	assert.Equal(t, "graph error: dependency cycle a → b → a", err.Error())
	assert.True(t, err.Contains("b"))
	assert.False(t, err.Contains("c"))

	seq := &GraphError{Kind: GraphErrorSequence, Order: 3}
	assert.Contains(t, seq.Error(), "3")
}

func TestClassify(t *testing.T) {
	type testCase struct {
		name     string
		err      error
		expected FailureKind
	}

	tests := []testCase{
		{name: "nil", err: nil, expected: FailureNone},
		{name: "transient", err: NewTransientError(errors.New("timeout")), expected: FailureTransient},
		{name: "permanent", err: NewPermanentError(errors.New("bad payload")), expected: FailurePermanent},
		{name: "deadline", err: context.DeadlineExceeded, expected: FailureTransient},
		{name: "validation", err: NewValidationError("id", "empty"), expected: FailurePermanent},
		{name: "unclassified", err: errors.New("boom"), expected: FailureTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.err))
		})
	}
	assert.Nil(t, NewTransientError(nil))
	assert.Nil(t, NewPermanentError(nil))
}
