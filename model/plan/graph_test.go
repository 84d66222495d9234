package plan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCycle(t *testing.T) {
	type testCase struct {
		name     string
		steps    []*Step
		expected []string
	}

	tests := []testCase{
		{
			name: "no edges",
			steps: []*Step{
				NewStep("a", 1, ""),
				NewStep("b", 2, ""),
			},
		},
		{
			name: "cycle path",
			steps: []*Step{
				NewStep("a", 1, "").WithDependencies("b"),
				NewStep("b", 2, "").WithDependencies("c"),
				NewStep("c", 3, "").WithDependencies("a"),
			},
			expected: []string{"a", "b", "c", "a"},
		},
		{
			name: "cycle below acyclic entry",
			steps: []*Step{
				NewStep("a", 1, "").WithDependencies("b"),
				NewStep("b", 2, "").WithDependencies("c"),
				NewStep("c", 3, "").WithDependencies("b"),
			},
			expected: []string{"b", "c", "b"},
		},
		{
			name: "edges outside plan ignored",
			steps: []*Step{
				NewStep("a", 1, "").WithDependencies("external"),
			},
		},
		{
			name: "shared dependency",
			steps: []*Step{
				NewStep("root", 1, ""),
				NewStep("x", 2, "").WithDependencies("root"),
				NewStep("y", 3, "").WithDependencies("root", "x"),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualValues(t, tc.expected, findCycle(tc.steps))
		})
	}
}

func TestFindCycle_LongChain(t *testing.T) {
	var steps []*Step
	for i := 1; i <= 2000; i++ {
		step := NewStep(fmt.Sprintf("s%d", i), i, "")
		if i > 1 {
			step.WithDependencies(fmt.Sprintf("s%d", i-1))
		}
		steps = append(steps, step)
	}
	assert.Nil(t, findCycle(steps))
	assert.NoError(t, validate(steps))
}
