package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/kubernetes"

	"github.com/objectHuang/jenkube/pkg/activate"
	"github.com/objectHuang/jenkube/pkg/apply"
	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/probe"
	"github.com/objectHuang/jenkube/pkg/serializer"
	"github.com/objectHuang/jenkube/pkg/state"
)

func convergeCmd() *cli.Command {
	return &cli.Command{
		Name:                  "converge",
		EnableShellCompletion: true,
		Usage:                 "Run the full bootstrap pipeline against cluster and controller",
		Description: `Runs all five stages in order: probe, apply, credential, render, activate.
The run aborts at the first failing stage; everything already converged
stays converged, so re-running after fixing the cause resumes safely.

# Examples

Converge from a desired state file:
  jenkube converge --config bootstrap.yaml

Write the rendered configuration where the controller reads it:
  jenkube converge --config bootstrap.yaml \
    --casc-file /var/jenkins_home/jenkins.yaml

Trigger a reload on a running controller and gate on its service unit:
  jenkube converge --config bootstrap.yaml \
    --casc-file /var/jenkins_home/jenkins.yaml \
    --reload-url http://192.168.8.171:8080/reload-configuration-as-code/ \
    --unit jenkins.service

Emit the run report as JSON for automation:
  jenkube converge --config bootstrap.yaml --output report.json --format json

# Exit Codes

The exit code names the failing stage: 2 probe, 3 apply, 4 credential,
5 render, 6 activate. See 'jenkube --help' for the full table.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			outputFlag,
			formatFlag,
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
				Value: activate.DefaultMaxWait,
				Usage: "Total time to wait for the controller to become live",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			desired, err := loadDesired(cmd)
			if err != nil {
				return err
			}

			client, err := newClientset(cmd, desired)
			if err != nil {
				return err
			}

			runner := newRunner(cmd, desired, client)

			report, runErr := runner.Converge(ctx)

			writer, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			if err != nil {
				return err
			}
			defer writer.Close()

			// The report is written even on failure: partial progress is
			// how the operator decides what to fix.
			if err := writer.Serialize(report); err != nil {
				return err
			}
			if runErr != nil {
				slog.Error("convergence failed", slog.String("error", runErr.Error()))
				return runErr
			}

			slog.Info("convergence succeeded",
				slog.String("run_id", report.RunID),
				slog.Duration("duration", report.Duration),
			)
			return nil
		},
	}
}

// newRunner wires the five stages from flags and desired state.
func newRunner(cmd *cli.Command, desired *state.DesiredState, client kubernetes.Interface) *pipeline.Runner {
	return &pipeline.Runner{
		Desired:      desired,
		Prober:       &probe.Prober{Discovery: client.Discovery(), ControllerURL: desired.ControllerURL},
		Applier:      apply.NewApplier(client, desired),
		Materializer: credential.NewMaterializer(client),
		Activator: &activate.Activator{
			ConfigPath:  cmd.String("casc-file"),
			ReloadURL:   cmd.String("reload-url"),
			HealthURL:   healthURL(cmd, desired),
			SystemdUnit: cmd.String("unit"),
			MaxWait:     cmd.Duration("max-wait"),
		},
	}
}
