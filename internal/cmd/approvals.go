package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/service/approval"
)

func (c *cli) approvalsCommand() *cobra.Command {
	ret := &cobra.Command{
		Use:     "approvals",
		Aliases: []string{"approval"},
		Short:   "List and decide approval requests",
	}

	var statuses []string
	list := &cobra.Command{
		Use:   "list",
		Short: "List approval requests, pending ones by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer srv.Shutdown(cmd.Context())
			var requests []*approval.Request
			if len(statuses) == 0 {
				requests, err = srv.Approvals().ListPending(cmd.Context())
			} else {
				filter := make([]approval.Status, len(statuses))
				for i, status := range statuses {
					filter[i] = approval.Status(status)
				}
				requests, err = srv.Approvals().List(cmd.Context(), filter...)
			}
			if err != nil {
				return err
			}
			for _, r := range requests {
				printRequest(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	list.Flags().StringSliceVar(&statuses, "status", nil, "statuses to list")

	approve := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer srv.Shutdown(cmd.Context())
			r, err := srv.Approvals().Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRequest(cmd.OutOrStdout(), r)
			return nil
		},
	}

	var reason string
	reject := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer srv.Shutdown(cmd.Context())
			r, err := srv.Approvals().Reject(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			printRequest(cmd.OutOrStdout(), r)
			return nil
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "rejection reason")

	process := &cobra.Command{
		Use:   "process",
		Short: "Expire overdue requests and execute approved ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer srv.Shutdown(cmd.Context())
			result, err := srv.Approvals().ProcessQueue(cmd.Context(), srv.Executors())
			if result != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.String())
			}
			return err
		},
	}

	ret.AddCommand(list, approve, reject, process)
	return ret
}

func printRequest(w io.Writer, r *approval.Request) {
	line := fmt.Sprintf("%s %s [%s] %s", bold(r.ID), r.Category, requestStatus(r.Status), r.Summary)
	if remaining := r.TimeRemaining(clock.Now()); remaining > 0 {
		line += gray(fmt.Sprintf(" expires in %s", remaining.Truncate(time.Second)))
	}
	if r.PlanID != "" {
		line += gray(fmt.Sprintf(" plan %s/%s", r.PlanID, r.StepID))
	}
	if r.Reason != "" {
		line += " " + r.Reason
	}
	if r.Error != "" {
		line += " " + red(r.Error)
	}
	fmt.Fprintln(w, line)
}
