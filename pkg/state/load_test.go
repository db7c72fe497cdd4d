package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `kind: BootstrapConfig
apiVersion: jenkube.io/v1alpha1
metadata:
  name: lab-cluster
spec:
  namespace: jenkins
  serviceAccount: jenkins
  credentialTTL: 8760h
  controllerURL: http://192.168.8.171:8080
  tunnelAddress: 192.168.8.171:50000
  podTemplate:
    name: jenkins-agent
    image: jenkins/inbound-agent:latest
`

func TestParse_Valid(t *testing.T) {
	desired, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, "jenkins", desired.Namespace)
	assert.Equal(t, "jenkins", desired.ServiceAccount)
	assert.Equal(t, 8760*time.Hour, desired.CredentialTTL.Duration())
	assert.Equal(t, "http://192.168.8.171:8080", desired.ControllerURL)
	assert.Equal(t, "192.168.8.171:50000", desired.TunnelAddress)

	// Defaults fill fields the document omits.
	assert.Equal(t, "jenkins-agent", desired.RoleName)
	assert.Equal(t, "jenkins-agent", desired.BindingName)
	assert.Equal(t, "/home/jenkins/agent", desired.PodTemplate.WorkingDir)
}

func TestParse_WrongKind(t *testing.T) {
	doc := strings.Replace(validConfig, "BootstrapConfig", "Recipe", 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected kind")
}

func TestParse_UnknownKeySuggestion(t *testing.T) {
	doc := strings.Replace(validConfig, "tunnelAddress:", "tunelAddress:", 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "tunelAddress"`)
	assert.Contains(t, err.Error(), `did you mean "tunnelAddress"`)
}

func TestParse_UnknownKeyNoSuggestion(t *testing.T) {
	doc := validConfig + "  totallyMadeUpThing: 1\n"
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv(EnvNamespace, "ci")
	t.Setenv(EnvControllerURL, "http://jenkins.example.com:8080")

	desired, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	assert.Equal(t, "ci", desired.Namespace)
	assert.Equal(t, "http://jenkins.example.com:8080", desired.ControllerURL)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	desired, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jenkins", desired.Namespace)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() DesiredState {
		d := Default()
		d.ControllerURL = "http://192.168.8.171:8080"
		d.TunnelAddress = "192.168.8.171:50000"
		return d
	}

	tests := []struct {
		name    string
		mutate  func(*DesiredState)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(d *DesiredState) {},
		},
		{
			name:    "missing namespace",
			mutate:  func(d *DesiredState) { d.Namespace = "" },
			wantErr: "namespace",
		},
		{
			name:    "zero ttl",
			mutate:  func(d *DesiredState) { d.CredentialTTL = 0 },
			wantErr: "credentialTTL",
		},
		{
			name:    "tunnel address without port",
			mutate:  func(d *DesiredState) { d.TunnelAddress = "192.168.8.171" },
			wantErr: "tunnelAddress",
		},
		{
			name:    "controller url without scheme",
			mutate:  func(d *DesiredState) { d.ControllerURL = "192.168.8.171:8080" },
			wantErr: "controllerURL",
		},
		{
			name:    "bad image reference",
			mutate:  func(d *DesiredState) { d.PodTemplate.Image = "UPPERCASE/not valid!" },
			wantErr: "podTemplate",
		},
		{
			name:    "bad external endpoint",
			mutate:  func(d *DesiredState) { d.ExternalEndpoint = "not a url" },
			wantErr: "externalEndpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSuggestSpecKey(t *testing.T) {
	assert.Equal(t, "namespace", suggestSpecKey("namespce"))
	assert.Equal(t, "credentialTTL", suggestSpecKey("credentialTtl"))
	assert.Equal(t, "", suggestSpecKey("zzzzzzzzzzzzzzzz"))
}
