package fluxgate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgate/model/plan"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/policy"
	"github.com/viant/fluxgate/service/approval"
)

const invoicePlan = `
id: invoice
objective: send invoice
steps:
  - id: draft
    description: draft invoice
  - id: send
    description: email invoice
    requiresApproval: true
    dependencies: [draft]
    action:
      category: EMAIL
      input:
        to: [billing@example.com]
        subject: Invoice
        body: attached
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	location := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(location, []byte(content), 0o644))
	return location
}

func TestService_SubmitPlan(t *testing.T) {
	type testCase struct {
		name   string
		vendor string
		url    func(dir string) string
	}

	tests := []testCase{
		{name: "memory", vendor: StoreMemory},
		{name: "fs", vendor: StoreFS, url: func(dir string) string { return dir }},
		{name: "sqlite", vendor: StoreSQLite, url: func(dir string) string { return filepath.Join(dir, "fluxgate.db") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := DefaultConfig()
			cfg.Store.Vendor = tc.vendor
			if tc.url != nil {
				cfg.Store.URL = tc.url(t.TempDir())
			}
			output := &bytes.Buffer{}
			srv, err := New(ctx, WithConfig(cfg), WithDryRunOutput(output))
			require.NoError(t, err)
			defer func() { assert.NoError(t, srv.Shutdown(ctx)) }()

			submitted, err := srv.SubmitPlan(ctx, writePlan(t, invoicePlan))
			require.NoError(t, err)
			assert.Equal(t, "invoice", submitted.ID)

			orchestrator := srv.Orchestrator()
			step, err := orchestrator.Advance(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, plan.StepCompleted, step.Status)

			step, err = orchestrator.Advance(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, plan.StepAwaitingApproval, step.Status)
			require.NotEmpty(t, step.ApprovalRequestID)

			pending, err := srv.Approvals().ListPending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, approval.CategoryEmail, pending[0].Category)

			_, err = srv.Approvals().Approve(ctx, step.ApprovalRequestID)
			require.NoError(t, err)
			step, err = orchestrator.Advance(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, plan.StepInProgress, step.Status, "approved action waits for the queue")
			assert.NotContains(t, output.String(), "[dry-run] EMAIL")

			result, err := srv.Approvals().ProcessQueue(ctx, srv.Executors())
			require.NoError(t, err)
			assert.Equal(t, 1, result.Executed)
			step, err = orchestrator.Advance(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, plan.StepCompleted, step.Status)

			loaded, err := orchestrator.Load(ctx, "invoice")
			require.NoError(t, err)
			assert.Equal(t, plan.StatusCompleted, loaded.Status)
			request, err := srv.Approvals().Load(ctx, step.ApprovalRequestID)
			require.NoError(t, err)
			assert.Equal(t, approval.StatusExecuted, request.Status)
			assert.Contains(t, output.String(), "[dry-run] EMAIL")
		})
	}
}

func TestService_LoadPlan(t *testing.T) {
	type testCase struct {
		name      string
		content   string
		expectErr error
	}

	tests := []testCase{
		{name: "valid", content: invoicePlan},
		{
			name: "cycle",
			content: `
objective: loop
steps:
  - id: a
    dependencies: [b]
  - id: b
    dependencies: [a]
`,
			expectErr: types.ErrGraph,
		},
		{
			name: "order gap",
			content: `
objective: gap
steps:
  - id: a
    order: 1
  - id: b
    order: 3
`,
			expectErr: types.ErrGraph,
		},
	}

	srv, err := New(context.Background())
	require.NoError(t, err)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := srv.LoadPlan(context.Background(), writePlan(t, tc.content))
			if tc.expectErr != nil {
				assert.True(t, errors.Is(err, tc.expectErr), err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Steps, 2)
			assert.Equal(t, 2, p.Step("send").Order)
		})
	}
}

func TestService_Runtime(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Orchestrator.PollingInterval = 20 * time.Millisecond
	cfg.Approval.QueueInterval = 20 * time.Millisecond
	cfg.Watchdog.CheckInterval = 50 * time.Millisecond

	var sent, events atomic.Int32
	srv, err := New(ctx,
		WithConfig(cfg),
		WithPolicy(&policy.Policy{Mode: policy.ModeAuto}),
		WithExecutor(approval.CategoryEmail, approval.ExecutorFunc(func(ctx context.Context, payload approval.Payload) (string, error) {
			sent.Add(1)
			return "sent", nil
		})),
		WithEventHandler(func(ctx context.Context, e *approval.Event) error {
			events.Add(1)
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, srv.Runtime().Start(ctx))
	assert.True(t, srv.Runtime().IsRunning())
	_, err = srv.SubmitPlan(ctx, writePlan(t, invoicePlan))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p, err := srv.Orchestrator().Load(ctx, "invoice")
		return err == nil && p.Status == plan.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 1, sent.Load())
	assert.Eventually(t, func() bool { return events.Load() >= 3 }, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, status := range srv.Supervisor().Statuses() {
			if !status.Healthy {
				return false
			}
		}
		return len(srv.Supervisor().Statuses()) == 4
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.Runtime().IsRunning())
	for _, status := range srv.Supervisor().Statuses() {
		assert.False(t, status.Running, status.Name)
	}
}
