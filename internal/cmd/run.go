package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/fluxgate"
	"github.com/viant/fluxgate/service/action/file"
	"github.com/viant/fluxgate/service/approval"
)

func (c *cli) runCommand() *cobra.Command {
	var (
		metricsAddress string
		liveFiles      bool
		fileBaseURL    string
	)
	ret := &cobra.Command{
		Use:   "run [PLAN...]",
		Short: "Submit plans and run the supervised orchestrator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			var options []fluxgate.Option
			if liveFiles {
				options = append(options, fluxgate.WithExecutor(approval.CategoryFileOperation, file.New(file.WithBaseURL(fileBaseURL))))
			}
			srv, err := c.service(cmd, options...)
			if err != nil {
				return err
			}
			logger := srv.Logger()
			for _, location := range args {
				p, err := srv.SubmitPlan(ctx, location)
				if err != nil {
					_ = srv.Shutdown(context.Background())
					return err
				}
				logger.Info("plan submitted", "plan", p.ID, "steps", len(p.Steps))
			}

			if metricsAddress == "" && srv.Config().Metrics.Enabled {
				metricsAddress = srv.Config().Metrics.Address
			}
			var server *http.Server
			if metricsAddress != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", srv.MetricsHandler())
				server = &http.Server{Addr: metricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", "error", err)
					}
				}()
			}

			if err = srv.Runtime().Start(ctx); err != nil {
				_ = srv.Shutdown(context.Background())
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s press Ctrl+C to stop\n", green("running"))
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.Config().Watchdog.StopTimeout)
			defer cancel()
			if server != nil {
				_ = server.Shutdown(shutdownCtx)
			}
			return srv.Shutdown(shutdownCtx)
		},
	}
	ret.Flags().StringVar(&metricsAddress, "metrics", "", "serve prometheus metrics on this address")
	ret.Flags().BoolVar(&liveFiles, "live-files", false, "execute approved file operations instead of printing them")
	ret.Flags().StringVar(&fileBaseURL, "file-base", "", "base location for relative file operation paths")
	return ret
}
