package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/apply"
	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/serializer"
)

func applyCmd() *cli.Command {
	return &cli.Command{
		Name:                  "apply",
		EnableShellCompletion: true,
		Usage:                 "Converge the cluster-side objects for agent dispatch",
		Description: `Creates or updates, in dependency order: the namespace, the agent service
account, the cluster role, the cluster role binding, and the agent pod
template. Objects already matching the desired state are left untouched,
so repeating the command is safe at any time.

Objects created by this tool carry the label
app.kubernetes.io/managed-by=jenkube; objects managed elsewhere are
updated only when their managed fields drift.

# Examples

Converge from a desired state file:
  jenkube apply --config bootstrap.yaml

Show what changed in a terminal-friendly table:
  jenkube apply --config bootstrap.yaml --format table

If a step fails, everything applied before it stays applied and the report
names the failing object. Exits 3 on failure.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			outputFlag,
			formatFlag,
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

			report, applyErr := apply.NewApplier(client, desired).Apply(ctx)

			// On partial failure, report what converged before the
			// failing object.
			var partial *apply.PartialError
			if report == nil && errors.As(applyErr, &partial) {
				report = &apply.Report{Applied: partial.Applied}
			}

			if report != nil {
				writer, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
				if err != nil {
					return err
				}
				defer writer.Close()

				if err := writer.Serialize(report); err != nil {
					return err
				}
			}

			if applyErr != nil {
				return &pipeline.StageError{Stage: pipeline.StageApply, Err: applyErr}
			}

			slog.Info("cluster objects converged",
				slog.String("namespace", desired.Namespace),
				slog.Bool("changed", report.Changed()),
			)
			return nil
		},
	}
}
