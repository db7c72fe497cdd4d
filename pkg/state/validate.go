package state

import (
	"fmt"
	"net"
	"net/url"

	"github.com/distribution/reference"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Validate checks that the desired state is complete and internally
// consistent. It fails closed: a state that passes Validate can be rendered
// into a controller configuration without further checks.
func (d *DesiredState) Validate() error {
	if d.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if d.ServiceAccount == "" {
		return fmt.Errorf("serviceAccount must not be empty")
	}
	if d.RoleName == "" {
		return fmt.Errorf("roleName must not be empty")
	}
	if d.BindingName == "" {
		return fmt.Errorf("bindingName must not be empty")
	}
	if d.CredentialTTL <= 0 {
		return fmt.Errorf("credentialTTL must be positive, got %s", d.CredentialTTL)
	}

	if d.ExternalEndpoint != "" {
		if err := validateURL(d.ExternalEndpoint); err != nil {
			return fmt.Errorf("externalEndpoint: %w", err)
		}
	}

	if err := validateURL(d.ControllerURL); err != nil {
		return fmt.Errorf("controllerURL: %w", err)
	}

	if err := ValidateHostPort(d.TunnelAddress); err != nil {
		return fmt.Errorf("tunnelAddress: %w", err)
	}

	if err := d.PodTemplate.validate(); err != nil {
		return fmt.Errorf("podTemplate: %w", err)
	}

	return nil
}

func (p *PodTemplate) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if p.Image == "" {
		return fmt.Errorf("image must not be empty")
	}
	if _, err := reference.ParseNormalizedNamed(p.Image); err != nil {
		return fmt.Errorf("image %q is not a valid OCI reference: %w", p.Image, err)
	}
	if p.CPURequest != "" {
		if _, err := resource.ParseQuantity(p.CPURequest); err != nil {
			return fmt.Errorf("cpuRequest %q: %w", p.CPURequest, err)
		}
	}
	if p.MemoryRequest != "" {
		if _, err := resource.ParseQuantity(p.MemoryRequest); err != nil {
			return fmt.Errorf("memoryRequest %q: %w", p.MemoryRequest, err)
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https scheme", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// ValidateHostPort checks that addr is a host:port pair with a non-empty
// host and a valid port. A bare host (no port) is rejected: the Jenkins
// tunnel address silently misbehaves without an explicit port.
func ValidateHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not a valid host:port address: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("%q has an empty host", addr)
	}
	if port == "" {
		return fmt.Errorf("%q has an empty port", addr)
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("%q has an invalid port: %w", addr, err)
	}
	return nil
}
