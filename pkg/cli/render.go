package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/oci"
	"github.com/objectHuang/jenkube/pkg/pipeline"
	"github.com/objectHuang/jenkube/pkg/render"
	"github.com/objectHuang/jenkube/pkg/serializer"
)

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:                  "render",
		EnableShellCompletion: true,
		Usage:                 "Render the controller configuration-as-code document",
		Description: `Materializes a credential, then renders the configuration-as-code document
the controller consumes: the Kubernetes cloud definition pointing at the
cluster endpoint, the agent pod template, and the credential entry. The
credential is referenced by id inside the cloud definition; its value
appears only in the credential store section.

Rendering is fail-closed: a desired state that cannot produce a valid
document (for example a tunnel address without a port) is an error, never
a document with fields silently dropped.

# Examples

Render to a file:
  jenkube render --config bootstrap.yaml --output jenkins.yaml

Render and publish as an OCI artifact:
  jenkube render --config bootstrap.yaml --output jenkins.yaml \
    --push --ref ghcr.io/acme/jenkins-config:v1

Push to a local development registry over HTTP:
  jenkube render --config bootstrap.yaml --output jenkins.yaml \
    --push --ref localhost:5000/jenkins-config:dev --plain-http

Registry credentials are read from JENKUBE_REGISTRY_USER and
JENKUBE_REGISTRY_PASSWORD; both unset means anonymous access.

Exits 4 when the credential cannot be issued, 5 when rendering fails.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			outputFlag,
			formatFlag,
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Push the rendered document as an OCI artifact",
			},
			&cli.StringFlag{
				Name:  "ref",
				Usage: "OCI reference to push to (e.g. ghcr.io/acme/jenkins-config:v1)",
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for the OCI registry (for local development)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("push") && cmd.String("ref") == "" {
				return fmt.Errorf("--ref is required when --push is enabled")
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

			doc, err := render.Render(desired, cred)
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageRender, Err: err}
			}

			output := cmd.String("output")
			writer, err := serializer.NewFileWriterOrStdout(outFormat, output)
			if err != nil {
				return err
			}
			defer writer.Close()

			if err := writer.Serialize(doc); err != nil {
				return err
			}

			if !cmd.Bool("push") {
				return nil
			}
			return pushDocument(ctx, cmd, doc, output)
		},
	}
}

// pushDocument publishes the rendered document to the OCI registry named by
// --ref. When the document went to stdout it is staged in a temp file first.
func pushDocument(ctx context.Context, cmd *cli.Command, doc *render.Document, output string) error {
	path := output
	if path == "" || path == serializer.StdoutPath {
		raw, err := doc.Marshal()
		if err != nil {
			return err
		}
		tmp, err := os.CreateTemp("", "jenkube-casc-*.yaml")
		if err != nil {
			return fmt.Errorf("failed to stage document for push: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(raw); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to stage document for push: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		path = tmp.Name()
	}

	digest, err := oci.Push(ctx, cmd.String("ref"), path, oci.PushOptions{
		Username:  os.Getenv("JENKUBE_REGISTRY_USER"),
		Password:  os.Getenv("JENKUBE_REGISTRY_PASSWORD"),
		PlainHTTP: cmd.Bool("plain-http"),
	})
	if err != nil {
		return err
	}

	slog.Info("configuration pushed",
		slog.String("ref", cmd.String("ref")),
		slog.String("digest", digest),
	)
	return nil
}
