package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/fluxgate/service/watchdog"
)

func (c *cli) statusCommand() *cobra.Command {
	var location string
	ret := &cobra.Command{
		Use:   "status",
		Short: "Show the last watchdog snapshot written by run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if location == "" {
				cfg, err := c.config(cmd.Context())
				if err != nil {
					return err
				}
				location = cfg.Watchdog.StatusFile
			}
			if location == "" {
				return fmt.Errorf("no status file configured, set watchdog.statusFile or --file")
			}
			snapshot, err := watchdog.NewStatusFile(location).Read(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			monitoring := red("stopped")
			if snapshot.Monitoring {
				monitoring = green("monitoring")
			}
			fmt.Fprintf(w, "%s at %s, %d restarts in window\n", monitoring, snapshot.Timestamp.Format(time.RFC3339), snapshot.RestartsInWindow)
			for _, r := range snapshot.Watchers {
				line := fmt.Sprintf("  %s %s restarts=%d failures=%d", bold(r.Name), healthy(r.Healthy), r.RestartCount, r.ConsecutiveFailures)
				if r.LastError != "" {
					line += " " + red(r.LastError)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	ret.Flags().StringVar(&location, "file", "", "status file location")
	return ret
}
