// Package client builds Kubernetes clients for the bootstrap stages.
package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// DefaultRequestTimeout bounds individual API requests made through clients
// built here.
const DefaultRequestTimeout = 30 * time.Second

// Options controls how the cluster client is constructed.
type Options struct {
	// Kubeconfig is an explicit kubeconfig path. Empty means automatic
	// discovery: $KUBECONFIG, then ~/.kube/config, then in-cluster.
	Kubeconfig string

	// Endpoint, when set, overrides the API server URL from the kubeconfig.
	// This pins the client to the externalEndpoint of the desired state so
	// the probed cluster is the one the controller will talk to.
	Endpoint string
}

// New creates a Kubernetes clientset from the given options.
func New(opts Options) (kubernetes.Interface, *rest.Config, error) {
	kubeconfig := opts.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")

		if kubeconfig == "" {
			kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
			if _, err := os.Stat(kubeconfig); os.IsNotExist(err) {
				kubeconfig = ""
			}
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build kube config: %w", err)
	}

	if opts.Endpoint != "" {
		config.Host = opts.Endpoint
	}

	// Bound every API call; requests that carry no context (e.g. the
	// discovery version call) must still not hang on a dead server.
	if config.Timeout == 0 {
		config.Timeout = DefaultRequestTimeout
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return clientset, config, nil
}
