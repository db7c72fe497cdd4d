// Package render produces the controller configuration document from the
// desired state and a materialized credential.
//
// Render is a pure function: identical inputs yield structurally identical
// documents, and it performs no I/O.
package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/state"
)

// Defaults for cloud tuning fields not carried in the desired state.
const (
	defaultContainerCap   = "10"
	defaultConnectTimeout = 5
	defaultReadTimeout    = 15
)

// InvalidError reports a desired state that cannot be rendered into a
// well-formed controller configuration. Rendering fails closed: a document
// the controller would silently misinterpret is never produced.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("cannot render configuration: %s: %s", e.Field, e.Reason)
}

// Render builds the controller configuration document. The credential value
// is embedded opaquely in the credential store entry and referenced by its
// stable id from the cloud configuration.
func Render(desired *state.DesiredState, cred *credential.Credential) (*Document, error) {
	if err := validate(desired, cred); err != nil {
		return nil, err
	}

	tpl := desired.PodTemplate

	container := AgentContainer{
		Name:               "jnlp",
		Image:              tpl.Image,
		WorkingDir:         tpl.WorkingDir,
		ResourceRequestCPU: tpl.CPURequest,
		ResourceRequestMem: tpl.MemoryRequest,
	}

	doc := &Document{
		Jenkins: JenkinsSection{
			NumExecutors: 0,
			Clouds: []Cloud{
				{
					Kubernetes: KubernetesCloud{
						Name:           "kubernetes",
						ServerURL:      desired.ExternalEndpoint,
						Namespace:      desired.Namespace,
						JenkinsURL:     desired.ControllerURL,
						JenkinsTunnel:  desired.TunnelAddress,
						CredentialsID:  cred.ID,
						SkipTLSVerify:  true,
						ContainerCap:   defaultContainerCap,
						ConnectTimeout: defaultConnectTimeout,
						ReadTimeout:    defaultReadTimeout,
						Templates: []AgentTemplate{
							{
								Name:       tpl.Name,
								Namespace:  desired.Namespace,
								Label:      tpl.Label,
								Containers: []AgentContainer{container},
							},
						},
					},
				},
			},
		},
		Credentials: CredentialsSection{
			System: SystemCredentials{
				DomainCredentials: []DomainCredentials{
					{
						Credentials: []CredentialEntry{
							{
								StringCredential: StringCredential{
									Scope:       "SYSTEM",
									ID:          cred.ID,
									Secret:      cred.Token.Reveal(),
									Description: fmt.Sprintf("Kubernetes token for %s", cred.Subject),
								},
							},
						},
					},
				},
			},
		},
	}

	return doc, nil
}

func validate(desired *state.DesiredState, cred *credential.Credential) error {
	if cred == nil || cred.Token.Reveal() == "" {
		return &InvalidError{Field: "credential", Reason: "missing or empty"}
	}
	if err := state.ValidateHostPort(desired.TunnelAddress); err != nil {
		return &InvalidError{Field: "tunnelAddress", Reason: err.Error()}
	}
	if err := desired.Validate(); err != nil {
		return &InvalidError{Field: "spec", Reason: err.Error()}
	}
	return nil
}

// Marshal serializes the document to Configuration-as-Code YAML.
func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize configuration document: %w", err)
	}
	return out, nil
}

// Unmarshal parses a serialized document, for structural comparison and
// round-trip checks.
func Unmarshal(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse configuration document: %w", err)
	}
	return &doc, nil
}
