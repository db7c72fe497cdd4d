package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/objectHuang/jenkube/pkg/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Run as a long-lived converger with a status API",
		Description: `Converges on an interval and serves status over HTTP:

  /healthz    Process liveness
  /readyz     Ready once the first convergence run has completed
  /metrics    Prometheus metrics
  /v1/status  The last run report

A failed run is recorded in the status API and retried on the next tick;
the process only exits on SIGINT/SIGTERM.

# Examples

Converge every 10 minutes (the default):
  jenkube serve --config bootstrap.yaml \
    --casc-file /var/jenkins_home/jenkins.yaml

Faster cadence on a custom port:
  jenkube serve --config bootstrap.yaml --interval 2m --port 9090`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			&cli.StringFlag{
				Name:  "casc-file",
				Usage: "Path the rendered configuration is written to (default: not written)",
			},
			&cli.StringFlag{
				Name:  "reload-url",
				Usage: "URL POSTed to trigger a configuration reload on a running controller",
			},
			&cli.StringFlag{
				Name:  "health-url",
				Usage: "Controller liveness URL (default: <controllerURL>/login)",
			},
			&cli.StringFlag{
				Name:  "unit",
				Usage: "Systemd unit checked before liveness polling (e.g. jenkins.service)",
			},
			&cli.DurationFlag{
				Name:  "max-wait",
				Value: 2 * time.Minute,
				Usage: "Total time to wait for the controller on each run",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 10 * time.Minute,
				Usage: "Time between convergence runs",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Status server port (default: 8089, or $PORT)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			desired, err := loadDesired(cmd)
			if err != nil {
				return err
			}

			client, err := newClientset(cmd, desired)
			if err != nil {
				return err
			}

			runner := newRunner(cmd, desired, client)

			cfg := server.DefaultConfig()
			if port := cmd.Int("port"); port != 0 {
				cfg.Port = port
			}
			srv := server.New(cfg)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return srv.ListenAndServe(ctx)
			})

			g.Go(func() error {
				interval := cmd.Duration("interval")
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					report, err := runner.Converge(ctx)
					if report != nil {
						srv.SetReport(report)
					}
					if err != nil {
						slog.Error("convergence failed, will retry",
							slog.String("error", err.Error()),
							slog.Duration("retry_in", interval),
						)
					}

					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			})

			return g.Wait()
		},
	}
}
