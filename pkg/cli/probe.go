package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/probe"
	"github.com/objectHuang/jenkube/pkg/serializer"
)

func probeCmd() *cli.Command {
	return &cli.Command{
		Name:                  "probe",
		EnableShellCompletion: true,
		Usage:                 "Check cluster and controller reachability without mutating anything",
		Description: `Probes the Kubernetes control plane and, when the desired state names a
controller URL, the controller endpoint. Both checks run concurrently and
are read-only. Any HTTP response from the controller counts as reachable:
an unconfigured controller still answers.

# Examples

Probe with the default kubeconfig discovery chain:
  jenkube probe --config bootstrap.yaml

Probe a specific cluster:
  jenkube probe --config bootstrap.yaml --kubeconfig ./admin.conf

Terminal-friendly result:
  jenkube probe --config bootstrap.yaml --format table

Exits 2 when either target is unreachable or the cluster rejects the
caller's credentials.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			outputFlag,
			formatFlag,
			&cli.DurationFlag{
				Name:  "timeout",
				Value: probe.DefaultTimeout,
				Usage: "Overall probe timeout",
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

			prober := &probe.Prober{
				Discovery:     client.Discovery(),
				ControllerURL: desired.ControllerURL,
				Timeout:       cmd.Duration("timeout"),
			}

			result, err := prober.Probe(ctx)
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageProbe, Err: err}
			}

			writer, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			if err != nil {
				return err
			}
			defer writer.Close()

			if err := writer.Serialize(result); err != nil {
				return err
			}

			if !result.Ready() {
				return &pipeline.StageError{
					Stage: pipeline.StageProbe,
					Err:   fmt.Errorf("cluster %s, controller %s", result.Cluster.Status, result.Controller.Status),
				}
			}
			return nil
		},
	}
}
