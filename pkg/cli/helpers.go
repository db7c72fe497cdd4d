package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/kubernetes"

	k8sclient "github.com/objectHuang/jenkube/pkg/k8s/client"
	"github.com/objectHuang/jenkube/pkg/serializer"
	"github.com/objectHuang/jenkube/pkg/state"
)

// Flags shared across subcommands.
var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Required: true,
		Usage:    "Desired state file path",
	}

	kubeconfigFlag = &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "Path to kubeconfig file (default: $KUBECONFIG, then ~/.kube/config, then in-cluster)",
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   "Output format (yaml, json, table)",
	}
)

// parseOutputFormat extracts and validates the output format from CLI flags.
// Returns the validated format or an error if the format is unknown.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, valid formats are: yaml, json, table", outFormat)
	}
	return outFormat, nil
}

// loadDesired loads the desired state from --config. Defaults for absent
// fields and validation happen inside state.Load.
func loadDesired(cmd *cli.Command) (*state.DesiredState, error) {
	return state.Load(cmd.String("config"))
}

// newClientset builds the cluster client, pinned to the external endpoint
// when the desired state names one.
func newClientset(cmd *cli.Command, desired *state.DesiredState) (kubernetes.Interface, error) {
	client, _, err := k8sclient.New(k8sclient.Options{
		Kubeconfig: cmd.String("kubeconfig"),
		Endpoint:   desired.ExternalEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}
	return client, nil
}

// healthURL returns the liveness endpoint for the controller: an explicit
// flag value if given, otherwise the controller's login page, which answers
// anonymously once the controller is up.
func healthURL(cmd *cli.Command, desired *state.DesiredState) string {
	if url := cmd.String("health-url"); url != "" {
		return url
	}
	return strings.TrimRight(desired.ControllerURL, "/") + "/login"
}
