package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/serializer"
)

func credentialCmd() *cli.Command {
	return &cli.Command{
		Name:                  "credential",
		EnableShellCompletion: true,
		Usage:                 "Materialize the controller credential via the TokenRequest API",
		Description: `Issues a bound service account token for the agent service account, scoped
to the lifetime in the desired state (spec.credentialTTL). A clamped server
grant is honored: the reported expiry is what the API server actually
granted, not what was requested.

The token value never appears in structured output; every serialization
shows it redacted. Use --reveal to write the raw token to stdout for
piping into a secret store:

  jenkube credential --config bootstrap.yaml --reveal | vault kv put ...

# Examples

Issue and inspect credential metadata:
  jenkube credential --config bootstrap.yaml

Machine-readable metadata:
  jenkube credential --config bootstrap.yaml --format json

Exits 4 when the token cannot be issued.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			outputFlag,
			formatFlag,
			&cli.BoolFlag{
				Name:  "reveal",
				Usage: "Write the raw token to stdout instead of redacted metadata",
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

			cred, err := credential.NewMaterializer(client).Materialize(
				ctx, desired.Namespace, desired.ServiceAccount, desired.CredentialTTL.Duration())
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageCredential, Err: err}
			}

			slog.Info("credential materialized",
				slog.String("id", cred.ID),
				slog.Time("expires_at", cred.ExpiresAt),
			)

			if cmd.Bool("reveal") {
				_, err := fmt.Fprintln(os.Stdout, cred.Token.Reveal())
				return err
			}

			writer, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			if err != nil {
				return err
			}
			defer writer.Close()

			return writer.Serialize(cred)
		},
	}
}
