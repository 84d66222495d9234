package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/fluxgate"
	"github.com/viant/fluxgate/model/plan"
)

func (c *cli) planCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:   "plan",
		Short: "Validate, submit and inspect plans",
	}
	ret.AddCommand(
		&cobra.Command{
			Use:   "validate FILE",
			Short: "Check a plan definition for ordering and dependency errors",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := c.service(cmd)
				if err != nil {
					return err
				}
				defer srv.Shutdown(cmd.Context())
				p, err := srv.LoadPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d steps\n", green("valid"), args[0], len(p.Steps))
				return nil
			},
		},
		&cobra.Command{
			Use:   "submit FILE",
			Short: "Store a plan for execution",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := c.service(cmd)
				if err != nil {
					return err
				}
				defer srv.Shutdown(cmd.Context())
				p, err := srv.SubmitPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "inspect ID",
			Short: "Show a stored plan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := c.service(cmd)
				if err != nil {
					return err
				}
				defer srv.Shutdown(cmd.Context())
				p, err := srv.Orchestrator().Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "advance ID",
			Short: "Advance a stored plan by one step",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := c.service(cmd)
				if err != nil {
					return err
				}
				defer srv.Shutdown(cmd.Context())
				step, err := srv.Orchestrator().Advance(cmd.Context(), args[0])
				if step != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold(step.ID), stepStatus(step.Status))
				}
				return err
			},
		},
		c.stepCommand("retry", "Return a failed step to pending", func(srv *fluxgate.Service) stepFunc {
			return srv.Orchestrator().Retry
		}),
		c.stepCommand("skip", "Mark a step skipped", func(srv *fluxgate.Service) stepFunc {
			return srv.Orchestrator().Skip
		}),
		&cobra.Command{
			Use:   "abort ID REASON",
			Short: "Mark a plan failed",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := c.service(cmd)
				if err != nil {
					return err
				}
				defer srv.Shutdown(cmd.Context())
				return srv.Orchestrator().Abort(cmd.Context(), args[0], args[1])
			},
		},
	)
	return ret
}

type stepFunc func(ctx context.Context, planID, stepID string) error

func (c *cli) stepCommand(use, short string, fn func(srv *fluxgate.Service) stepFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID STEP",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer srv.Shutdown(cmd.Context())
			if err = fn(srv)(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			p, err := srv.Orchestrator().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func printPlan(w io.Writer, p *plan.Plan) {
	completed, total := p.Progress()
	fmt.Fprintf(w, "%s %s [%s] %d/%d\n", bold(p.ID), p.Objective, planStatus(p.Status), completed, total)
	for _, step := range p.Steps {
		line := fmt.Sprintf("  %d. %s %s", step.Order, step.ID, stepStatus(step.Status))
		if step.RequiresApproval {
			line += " " + cyan("gated")
		}
		if len(step.Dependencies) > 0 {
			line += gray(" after " + strings.Join(step.Dependencies, ","))
		}
		if step.Error != "" {
			line += " " + red(step.Error)
		}
		fmt.Fprintln(w, line)
	}
	if ready := p.ReadySteps(); len(ready) > 0 && p.Status.IsOpen() {
		ids := make([]string, len(ready))
		for i, step := range ready {
			ids[i] = step.ID
		}
		fmt.Fprintf(w, "  ready: %s\n", strings.Join(ids, ","))
	}
}
