package cli

import (
	"context"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/serializer"
)

// Build metadata set via ldflags alongside version.
var (
	commit = "unknown"
	date   = "unknown"
)

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			return serializer.NewStdoutWriter(outFormat).Serialize(versionInfo{
				Version:   version,
				Commit:    commit,
				BuildDate: date,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}
}
