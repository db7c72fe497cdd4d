package state

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding individual desired-state fields.
const (
	EnvExternalEndpoint = "JENKUBE_EXTERNAL_ENDPOINT"
	EnvNamespace        = "JENKUBE_NAMESPACE"
	EnvServiceAccount   = "JENKUBE_SERVICE_ACCOUNT"
	EnvControllerURL    = "JENKUBE_CONTROLLER_URL"
	EnvTunnelAddress    = "JENKUBE_TUNNEL_ADDRESS"
)

// Default returns the desired state used when a field is absent from the
// config document. The defaults match a single-controller Jenkins install
// dispatching inbound JNLP agents.
func Default() DesiredState {
	return DesiredState{
		Namespace:      "jenkins",
		RoleName:       "jenkins-agent",
		BindingName:    "jenkins-agent",
		ServiceAccount: "jenkins",
		CredentialTTL:  Duration(8760 * time.Hour),
		PodTemplate: PodTemplate{
			Name:       "jenkins-agent",
			Label:      "jenkins-agent",
			Image:      "jenkins/inbound-agent:latest",
			WorkingDir: "/home/jenkins/agent",
		},
	}
}

// Load reads a BootstrapConfig document from path, applies defaults and
// environment overrides, and validates the result. Unknown spec fields are
// rejected with a suggestion for the closest known field.
func Load(path string) (*DesiredState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(raw)
}

// Parse decodes a BootstrapConfig document from raw YAML bytes.
func Parse(raw []byte) (*DesiredState, error) {
	if err := checkSpecKeys(raw); err != nil {
		return nil, err
	}

	cfg := BootstrapConfig{Spec: Default()}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config document: %w", err)
	}

	if cfg.Kind != ConfigKind {
		return nil, fmt.Errorf("unexpected kind %q, want %q", cfg.Kind, ConfigKind)
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q, want %q", cfg.APIVersion, ConfigAPIVersion)
	}

	desired := cfg.Spec
	applyEnvOverrides(&desired)

	if err := desired.Validate(); err != nil {
		return nil, err
	}

	return &desired, nil
}

func applyEnvOverrides(d *DesiredState) {
	if v := os.Getenv(EnvExternalEndpoint); v != "" {
		d.ExternalEndpoint = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		d.Namespace = v
	}
	if v := os.Getenv(EnvServiceAccount); v != "" {
		d.ServiceAccount = v
	}
	if v := os.Getenv(EnvControllerURL); v != "" {
		d.ControllerURL = v
	}
	if v := os.Getenv(EnvTunnelAddress); v != "" {
		d.TunnelAddress = v
	}
}

// checkSpecKeys walks the spec mapping of the raw document and rejects keys
// that are not part of the DesiredState schema, suggesting the nearest known
// key for likely typos.
func checkSpecKeys(raw []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse config document: %w", err)
	}
	if len(doc.Content) == 0 {
		return fmt.Errorf("config document is empty")
	}

	root := doc.Content[0]
	spec := mappingValue(root, "spec")
	if spec == nil || spec.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(spec.Content)-1; i += 2 {
		key := spec.Content[i].Value
		if !knownSpecKey(key) {
			if suggestion := suggestSpecKey(key); suggestion != "" {
				return fmt.Errorf("unknown field %q in spec (did you mean %q?)", key, suggestion)
			}
			return fmt.Errorf("unknown field %q in spec", key)
		}
	}

	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
