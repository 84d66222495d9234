// Package orchestrator drives stored plans forward. Each move picks the
// plan's current step, routes approval gated steps through the approval
// ledger, runs the step action once it is allowed and records the outcome in
// the plan. The polling loop can be supervised as a watchdog unit.
package orchestrator
