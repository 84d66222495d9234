// Package fluxgate gates an agent's side-effecting work behind plans,
// approvals and supervision.
//
// A plan decomposes an objective into ordered, dependency constrained steps.
// Steps that require sign-off raise approval requests in the ledger; once a
// human or a policy approves, the action is executed exactly once and the
// plan moves on. A watchdog supervisor keeps the long running pieces, the
// plan driver included, alive.
//
// The Service façade wires the pieces from a Config:
//
//	srv, _ := fluxgate.New(ctx, fluxgate.WithConfig(cfg))
//	p, _ := srv.SubmitPlan(ctx, "plans/invoice.yaml")
//	_ = srv.Runtime().Start(ctx)
//	defer srv.Shutdown(ctx)
//
// See the sub-packages for the individual components.
package fluxgate
