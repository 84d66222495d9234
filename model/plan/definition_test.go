package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefinition_Build(t *testing.T) {
	type testCase struct {
		name        string
		document    string
		expectSteps []string
		expectErr   bool
	}

	tests := []testCase{
		{
			name: "runtime state is discarded",
			document: `
objective: send invoice
steps:
  - id: draft
    status: COMPLETED
    error: stale
    startedAt: 2026-01-01T10:00:00Z
    completedAt: 2026-01-01T10:05:00Z
  - id: send
    requiresApproval: true
    dependencies: [draft]
    status: AWAITING_APPROVAL
    approvalRequestId: apr-forged
`,
			expectSteps: []string{"draft", "send"},
		},
		{
			name: "missing order takes list position",
			document: `
objective: publish
steps:
  - id: write
  - id: review
    dependencies: [write]
`,
			expectSteps: []string{"write", "review"},
		},
		{
			name: "cyclic definition",
			document: `
objective: loop
steps:
  - id: a
    dependencies: [b]
  - id: b
    dependencies: [a]
`,
			expectErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			definition := &Definition{}
			require.NoError(t, yaml.Unmarshal([]byte(tc.document), definition))
			p, err := definition.Build()
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, p.Status)
			require.Len(t, p.Steps, len(tc.expectSteps))
			for i, id := range tc.expectSteps {
				step := p.Steps[i]
				assert.Equal(t, id, step.ID)
				assert.Equal(t, i+1, step.Order)
				assert.Equal(t, StepPending, step.Status)
				assert.Empty(t, step.ApprovalRequestID)
				assert.Empty(t, step.Error)
				assert.Nil(t, step.StartedAt)
				assert.Nil(t, step.CompletedAt)
			}
			assert.Equal(t, tc.expectSteps[0], p.CurrentStep().ID)
		})
	}
}
