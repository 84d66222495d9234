// Package tracing wraps OpenTelemetry so that the ledger, the supervisor and
// the orchestrator can open spans without importing the SDK directly.
// Without Init spans are no-ops.
package tracing
