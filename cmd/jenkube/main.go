package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/objectHuang/jenkube/pkg/cli"
	"github.com/objectHuang/jenkube/pkg/pipeline"
)

func main() {
	if err := cli.New().Run(context.Background(), os.Args); err != nil {
		slog.Error("jenkube failed", slog.String("error", err.Error()))
		os.Exit(pipeline.ExitCode(err))
	}
}
