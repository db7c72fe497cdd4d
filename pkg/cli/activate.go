package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/activate"
	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/render"
)

func activateCmd() *cli.Command {
	return &cli.Command{
		Name:                  "activate",
		EnableShellCompletion: true,
		Usage:                 "Install a rendered configuration and await controller liveness",
		Description: `Takes a previously rendered configuration document, installs it where the
controller reads it, optionally triggers a reload, and polls until the
controller answers. A configuration the controller rejects is reported as
rejection with the controller's response; a controller that never answers
within the wait budget is reported as timeout. The two are never conflated:
a rejection means fix the configuration, a timeout means look at the
controller.

# Examples

Install and wait with defaults (5 minute maximum wait):
  jenkube activate --config bootstrap.yaml --file jenkins.yaml \
    --casc-file /var/jenkins_home/jenkins.yaml

Reload a running controller and gate on its service unit:
  jenkube activate --config bootstrap.yaml --file jenkins.yaml \
    --casc-file /var/jenkins_home/jenkins.yaml \
    --reload-url http://192.168.8.171:8080/reload-configuration-as-code/ \
    --unit jenkins.service

Exits 6 on rejection or timeout.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Required: true,
				Usage:    "Rendered configuration document to activate",
			},
			&cli.StringFlag{
				Name:  "casc-file",
				Usage: "Path the configuration is written to (default: not written)",
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
				Value: activate.DefaultMaxWait,
				Usage: "Total time to wait for the controller to become live",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			desired, err := loadDesired(cmd)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(cmd.String("file"))
			if err != nil {
				return fmt.Errorf("failed to read configuration %s: %w", cmd.String("file"), err)
			}
			doc, err := render.Unmarshal(raw)
			if err != nil {
				return fmt.Errorf("invalid configuration in %s: %w", cmd.String("file"), err)
			}

			activator := &activate.Activator{
				ConfigPath:  cmd.String("casc-file"),
				ReloadURL:   cmd.String("reload-url"),
				HealthURL:   healthURL(cmd, desired),
				SystemdUnit: cmd.String("unit"),
				MaxWait:     cmd.Duration("max-wait"),
			}

			if err := activator.Activate(ctx, doc); err != nil {
				return &pipeline.StageError{Stage: pipeline.StageActivate, Err: err}
			}

			slog.Info("controller live", slog.String("health_url", activator.HealthURL))
			return nil
		},
	}
}
