// Package cli implements the command-line interface for the jenkube tool.
//
// # Overview
//
// The jenkube CLI bootstraps a Jenkins controller to dispatch build agents
// on a Kubernetes cluster. A full run walks five stages: probing the cluster
// and controller, applying the cluster-side objects, materializing a bound
// service account credential, rendering the controller configuration, and
// activating it on the controller. Each stage is also exposed as its own
// command for inspection and recovery.
//
// # Commands
//
// converge - Run the full five-stage pipeline:
//
//	jenkube converge --config bootstrap.yaml
//	jenkube converge --config bootstrap.yaml --casc-file /var/jenkins_home/jenkins.yaml
//	jenkube converge --config bootstrap.yaml --output report.yaml --format json
//
// probe - Check cluster and controller reachability (Stage 1):
//
//	jenkube probe --config bootstrap.yaml
//	jenkube probe --kubeconfig ~/.kube/config --format table
//
// apply - Converge the cluster-side objects (Stage 2):
//
//	jenkube apply --config bootstrap.yaml
//	jenkube apply --config bootstrap.yaml --format json
//
// Creates or updates the namespace, service account, cluster role, cluster
// role binding, and agent pod template. Safe to repeat: unchanged objects
// are left untouched.
//
// credential - Materialize the controller credential (Stage 3):
//
//	jenkube credential --config bootstrap.yaml
//	jenkube credential --config bootstrap.yaml --reveal > token
//
// Issues a bound service account token via the TokenRequest API. The token
// value is redacted from all structured output; --reveal writes the raw
// token to stdout for piping into a secret store.
//
// render - Render the controller configuration (Stage 4):
//
//	jenkube render --config bootstrap.yaml --output jenkins.yaml
//	jenkube render --config bootstrap.yaml --push --ref ghcr.io/acme/jenkins-config:v1
//
// Renders the configuration-as-code document embedding the cluster
// endpoint, controller URLs, and the credential reference. With --push the
// rendered document is also published to an OCI registry as an artifact.
//
// activate - Install a rendered configuration and await liveness (Stage 5):
//
//	jenkube activate --config bootstrap.yaml --file jenkins.yaml
//	jenkube activate --config bootstrap.yaml --file jenkins.yaml --unit jenkins.service
//
// serve - Run as a long-lived converger with a status API:
//
//	jenkube serve --config bootstrap.yaml --interval 10m
//
// Converges on an interval and exposes /healthz, /readyz, /metrics, and
// /v1/status over HTTP.
//
// # Global Flags
//
//	--config, -c      Desired state file path (required)
//	--kubeconfig, -k  Path to kubeconfig file
//	--output, -o      Output file path (default: stdout)
//	--format, -t      Output format: yaml, json, table (default: yaml)
//	--debug           Enable debug logging
//	--log-json        Output logs in JSON format
//
// # Environment Variables
//
//	LOG_LEVEL                  Logging verbosity (debug, info, warn, error)
//	KUBECONFIG                 Path to kubeconfig file
//	PORT                       Status server port (serve command)
//	JENKUBE_NAMESPACE          Override spec.namespace
//	JENKUBE_SERVICE_ACCOUNT    Override spec.serviceAccount
//	JENKUBE_CONTROLLER_URL     Override spec.controllerURL
//	JENKUBE_EXTERNAL_ENDPOINT  Override spec.externalEndpoint
//	JENKUBE_REGISTRY_USER      OCI registry username (render --push)
//	JENKUBE_REGISTRY_PASSWORD  OCI registry password (render --push)
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Probe failed: cluster or controller unreachable/unauthorized
//	3  Apply failed: cluster-side objects could not be converged
//	4  Credential materialization failed
//	5  Render failed: desired state cannot produce a valid configuration
//	6  Activation failed: controller rejected the configuration or never
//	   became live
//
// # Architecture
//
// The CLI uses the urfave/cli/v3 framework and delegates to specialized
// packages:
//   - pkg/probe - Cluster and controller reachability checks
//   - pkg/apply - Idempotent convergence of cluster-side objects
//   - pkg/credential - Bound service account token issuance
//   - pkg/render - Configuration-as-code document rendering
//   - pkg/activate - Configuration installation and liveness polling
//   - pkg/pipeline - Stage orchestration and run reports
//   - pkg/serializer - Output formatting
//   - pkg/logging - Structured logging
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/objectHuang/jenkube/pkg/cli.version=1.0.0'"
package cli
