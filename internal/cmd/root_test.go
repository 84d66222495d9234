package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgate"
)

const invoicePlan = `
id: invoice
objective: send invoice
steps:
  - id: draft
  - id: send
    requiresApproval: true
    dependencies: [draft]
    action:
      category: EMAIL
      input:
        to: [billing@example.com]
        subject: Invoice
        body: attached
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_PlanLifecycle(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "invoice.yaml")
	require.NoError(t, os.WriteFile(location, []byte(invoicePlan), 0o644))
	store := []string{"--store", "fs", "--store-url", filepath.Join(dir, "store"), "--log-level", "error"}

	out, err := execute(t, append([]string{"plan", "validate", location}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	out, err = execute(t, append([]string{"plan", "submit", location}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "invoice send invoice [PENDING] 0/2")

	for i := 0; i < 2; i++ {
		_, err = execute(t, append([]string{"plan", "advance", "invoice"}, store...)...)
		require.NoError(t, err)
	}
	out, err = execute(t, append([]string{"plan", "inspect", "invoice"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "send AWAITING_APPROVAL gated")

	out, err = execute(t, append([]string{"approvals", "list"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "EMAIL [PENDING]")

	cfg := fluxgate.DefaultConfig()
	cfg.Store = fluxgate.StoreConfig{Vendor: fluxgate.StoreFS, URL: filepath.Join(dir, "store")}
	srv, err := fluxgate.New(context.Background(), fluxgate.WithConfig(cfg))
	require.NoError(t, err)
	pending, err := srv.Approvals().ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	out, err = execute(t, append([]string{"approvals", "approve", pending[0].ID}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[APPROVED]")

	out, err = execute(t, append([]string{"approvals", "process"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "executed=1 failed=0 expired=0")
	assert.Contains(t, out, "[dry-run] EMAIL")

	_, err = execute(t, append([]string{"plan", "advance", "invoice"}, store...)...)
	require.NoError(t, err)
	out, err = execute(t, append([]string{"plan", "inspect", "invoice"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[COMPLETED] 2/2")
}

func TestCommands_RetrySkip(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "invoice.yaml")
	require.NoError(t, os.WriteFile(location, []byte(invoicePlan), 0o644))
	store := []string{"--store", "fs", "--store-url", filepath.Join(dir, "store"), "--log-level", "error"}
	run := func(args ...string) (string, error) {
		return execute(t, append(args, store...)...)
	}

	out, err := run("plan", "submit", location)
	require.NoError(t, err)
	assert.Contains(t, out, "ready: draft")
	for i := 0; i < 2; i++ {
		_, err = run("plan", "advance", "invoice")
		require.NoError(t, err)
	}

	cfg := fluxgate.DefaultConfig()
	cfg.Store = fluxgate.StoreConfig{Vendor: fluxgate.StoreFS, URL: filepath.Join(dir, "store")}
	srv, err := fluxgate.New(context.Background(), fluxgate.WithConfig(cfg))
	require.NoError(t, err)
	pending, err := srv.Approvals().ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = run("approvals", "reject", pending[0].ID, "--reason", "wrong amount")
	require.NoError(t, err)
	_, err = run("plan", "advance", "invoice")
	assert.ErrorContains(t, err, "rejected")

	_, err = run("plan", "retry", "invoice", "missing")
	assert.Error(t, err)

	out, err = run("plan", "retry", "invoice", "send")
	require.NoError(t, err)
	assert.Contains(t, out, "send PENDING gated")
	assert.Contains(t, out, "ready: send")

	out, err = run("plan", "skip", "invoice", "send")
	require.NoError(t, err)
	assert.Contains(t, out, "[COMPLETED] 1/2")
	assert.Contains(t, out, "send SKIPPED")
}

func TestCommands_Errors(t *testing.T) {
	type testCase struct {
		name string
		args []string
		env  map[string]string
	}

	dir := t.TempDir()
	cyclic := filepath.Join(dir, "cyclic.yaml")
	require.NoError(t, os.WriteFile(cyclic, []byte("objective: loop\nsteps:\n  - id: a\n    dependencies: [b]\n  - id: b\n    dependencies: [a]\n"), 0o644))

	tests := []testCase{
		{name: "cyclic plan", args: []string{"plan", "validate", cyclic}},
		{name: "unknown store", args: []string{"plan", "validate", cyclic, "--store", "redis"}},
		{name: "env store without url", args: []string{"approvals", "list"}, env: map[string]string{"FLUXGATE_STORE_VENDOR": "sqlite"}},
		{name: "status without file", args: []string{"status"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := execute(t, tc.args...)
			assert.Error(t, err)
		})
	}
}
