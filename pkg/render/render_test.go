package render

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/state"
)

func testInputs() (*state.DesiredState, *credential.Credential) {
	desired := state.Default()
	desired.ControllerURL = "http://192.168.8.171:8080"
	desired.TunnelAddress = "192.168.8.171:50000"

	issued := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cred := &credential.Credential{
		ID:        credential.CredentialID("jenkins", "jenkins"),
		Token:     credential.Secret("eyJhbGciOiJSUzI1NiJ9.agent-token"),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(8760 * time.Hour),
		Subject:   credential.Subject{Namespace: "jenkins", ServiceAccount: "jenkins"},
	}
	return &desired, cred
}

func TestRender_EmbedsDesiredStateExactly(t *testing.T) {
	desired, cred := testInputs()

	doc, err := Render(desired, cred)
	require.NoError(t, err)

	k8s := doc.Jenkins.Clouds[0].Kubernetes
	assert.Equal(t, "http://192.168.8.171:8080", k8s.JenkinsURL)
	assert.Equal(t, "192.168.8.171:50000", k8s.JenkinsTunnel)
	assert.Equal(t, "jenkins", k8s.Namespace)
	assert.Equal(t, "jenkube-jenkins-jenkins", k8s.CredentialsID)
	assert.Equal(t, 0, doc.Jenkins.NumExecutors)

	require.Len(t, k8s.Templates, 1)
	assert.Equal(t, "jenkins/inbound-agent:latest", k8s.Templates[0].Containers[0].Image)
}

func TestRender_CredentialReferencedByIDNotValue(t *testing.T) {
	desired, cred := testInputs()

	doc, err := Render(desired, cred)
	require.NoError(t, err)

	// The cloud config references the credential only by stable id; the raw
	// token appears solely in the credential store entry.
	k8s := doc.Jenkins.Clouds[0].Kubernetes
	assert.Equal(t, cred.ID, k8s.CredentialsID)
	assert.NotContains(t, k8s.CredentialsID, cred.Token.Reveal())

	entry := doc.Credentials.System.DomainCredentials[0].Credentials[0].StringCredential
	assert.Equal(t, cred.ID, entry.ID)
	assert.Equal(t, cred.Token.Reveal(), entry.Secret)
}

func TestRender_Pure(t *testing.T) {
	desired, cred := testInputs()

	first, err := Render(desired, cred)
	require.NoError(t, err)
	second, err := Render(desired, cred)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(first, second), "identical inputs must produce structurally identical documents")
}

func TestRender_RoundTripsLosslessly(t *testing.T) {
	desired, cred := testInputs()

	doc, err := Render(desired, cred)
	require.NoError(t, err)

	raw, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := Unmarshal(raw)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(doc, parsed), "document must survive a serialization round trip")
}

func TestRender_FailsOnTunnelAddressWithoutPort(t *testing.T) {
	desired, cred := testInputs()
	desired.TunnelAddress = "192.168.8.171"

	_, err := Render(desired, cred)
	require.Error(t, err)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "tunnelAddress", invalid.Field)
}

func TestRender_FailsOnMalformedControllerURL(t *testing.T) {
	desired, cred := testInputs()
	desired.ControllerURL = "not-a-url"

	_, err := Render(desired, cred)
	require.Error(t, err)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestRender_FailsOnMissingCredential(t *testing.T) {
	desired, _ := testInputs()

	_, err := Render(desired, nil)
	require.Error(t, err)

	_, err = Render(desired, &credential.Credential{})
	require.Error(t, err)
}

func TestRender_SpecialCharactersInTokenStayIntact(t *testing.T) {
	desired, cred := testInputs()
	cred.Token = credential.Secret("tok: {with} \"yaml\" #special\nchars")

	doc, err := Render(desired, cred)
	require.NoError(t, err)

	raw, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := Unmarshal(raw)
	require.NoError(t, err)

	entry := parsed.Credentials.System.DomainCredentials[0].Credentials[0].StringCredential
	assert.Equal(t, cred.Token.Reveal(), entry.Secret,
		"typed construction must keep format-special characters intact")
}

func TestRender_MarshalContainsNoUnexpectedSecretCopies(t *testing.T) {
	desired, cred := testInputs()

	doc, err := Render(desired, cred)
	require.NoError(t, err)

	raw, err := doc.Marshal()
	require.NoError(t, err)

	// Exactly one occurrence: the credential store entry.
	assert.Equal(t, 1, strings.Count(string(raw), cred.Token.Reveal()))
}
