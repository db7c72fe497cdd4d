package credential

import (
	"fmt"
	"time"
)

// Secret holds an opaque credential value. Its formatting methods redact the
// value so it cannot leak through logs or %v formatting; callers that need
// the raw token use Reveal explicitly.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	return redacted
}

// GoString keeps %#v output redacted too.
func (s Secret) GoString() string {
	return redacted
}

// MarshalText redacts the secret in any text-based serialization of the
// credential metadata. The rendered controller document extracts the raw
// value deliberately via Reveal.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Reveal returns the raw secret value.
func (s Secret) Reveal() string {
	return string(s)
}

// Subject identifies the service account a credential is bound to.
type Subject struct {
	Namespace      string `json:"namespace" yaml:"namespace"`
	ServiceAccount string `json:"serviceAccount" yaml:"serviceAccount"`
}

func (s Subject) String() string {
	return s.Namespace + "/" + s.ServiceAccount
}

// Credential is a time-bounded token for the agent service account.
// ExpiresAt is the expiry the API server actually granted, which may be
// later than requested if the server rounded the TTL up.
type Credential struct {
	// ID is the stable identifier the rendered controller configuration
	// references; it never changes across reissues for the same subject.
	ID string `json:"id" yaml:"id"`

	Token     Secret    `json:"token" yaml:"token"`
	IssuedAt  time.Time `json:"issuedAt" yaml:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`
	Subject   Subject   `json:"subject" yaml:"subject"`
}

// Expired reports whether the credential is past its granted lifetime.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Fresh reports whether the credential still has more than the given
// fraction of its granted lifetime remaining.
func (c *Credential) Fresh(now time.Time, fraction float64) bool {
	if c.Expired(now) {
		return false
	}
	lifetime := c.ExpiresAt.Sub(c.IssuedAt)
	remaining := c.ExpiresAt.Sub(now)
	return float64(remaining) > float64(lifetime)*fraction
}

// CredentialID derives the stable controller-side identifier for a subject.
func CredentialID(namespace, serviceAccount string) string {
	return fmt.Sprintf("jenkube-%s-%s", namespace, serviceAccount)
}
