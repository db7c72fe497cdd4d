package state

const (
	// ConfigKind is the expected kind field of a bootstrap config document.
	ConfigKind = "BootstrapConfig"

	// ConfigAPIVersion is the current API version for bootstrap config documents.
	ConfigAPIVersion = "jenkube.io/v1alpha1"
)

// BootstrapConfig is the on-disk form of the desired state, following the
// Kubernetes resource convention (kind/apiVersion/metadata/spec).
type BootstrapConfig struct {
	Kind       string       `json:"kind" yaml:"kind"`
	APIVersion string       `json:"apiVersion" yaml:"apiVersion"`
	Metadata   Metadata     `json:"metadata" yaml:"metadata"`
	Spec       DesiredState `json:"spec" yaml:"spec"`
}

// Metadata identifies a bootstrap config document.
type Metadata struct {
	Name string `json:"name" yaml:"name"`
}

// DesiredState is the declarative target this tool converges the cluster and
// the Jenkins controller toward. It is built once at process start and never
// mutated afterwards; stages receive it read-only.
type DesiredState struct {
	// ExternalEndpoint is the Kubernetes API server URL the controller will
	// dispatch agents to. Empty means "whatever the kubeconfig says".
	ExternalEndpoint string `json:"externalEndpoint,omitempty" yaml:"externalEndpoint,omitempty"`

	// Namespace hosts the agent pods and the RBAC objects.
	Namespace string `json:"namespace" yaml:"namespace"`

	// RoleName is the ClusterRole granting the agent service account its
	// pod-management permissions.
	RoleName string `json:"roleName" yaml:"roleName"`

	// BindingName is the ClusterRoleBinding tying RoleName to ServiceAccount.
	BindingName string `json:"bindingName" yaml:"bindingName"`

	// ServiceAccount is the identity the controller authenticates as.
	ServiceAccount string `json:"serviceAccount" yaml:"serviceAccount"`

	// CredentialTTL bounds the lifetime of the issued service account token.
	CredentialTTL Duration `json:"credentialTTL" yaml:"credentialTTL"`

	// ControllerURL is the Jenkins controller base URL as reachable from
	// agent pods (jenkinsUrl in the rendered configuration).
	ControllerURL string `json:"controllerURL" yaml:"controllerURL"`

	// TunnelAddress is the host:port agents use for the JNLP tunnel.
	TunnelAddress string `json:"tunnelAddress" yaml:"tunnelAddress"`

	// PodTemplate describes the agent pod dispatched per build.
	PodTemplate PodTemplate `json:"podTemplate" yaml:"podTemplate"`
}

// PodTemplate is the subset of an agent pod spec this tool manages.
type PodTemplate struct {
	Name       string            `json:"name" yaml:"name"`
	Label      string            `json:"label,omitempty" yaml:"label,omitempty"`
	Image      string            `json:"image" yaml:"image"`
	WorkingDir string            `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Resource requests for the agent container, in Kubernetes quantity
	// notation (e.g. "500m", "512Mi"). Empty means no request.
	CPURequest    string `json:"cpuRequest,omitempty" yaml:"cpuRequest,omitempty"`
	MemoryRequest string `json:"memoryRequest,omitempty" yaml:"memoryRequest,omitempty"`
}
