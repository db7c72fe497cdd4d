package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// New builds the root command with all subcommands attached.
func New() *cli.Command {
	return &cli.Command{
		Name:                  "jenkube",
		Usage:                 "Bootstrap a Jenkins controller to dispatch build agents on Kubernetes",
		Version:               version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Output logs in JSON format",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.Setup(cmd.Bool("debug"), cmd.Bool("log-json"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			convergeCmd(),
			probeCmd(),
			applyCmd(),
			credentialCmd(),
			renderCmd(),
			activateCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}
