package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectHuang/jenkube/pkg/apply"
	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/probe"
	"github.com/objectHuang/jenkube/pkg/render"
	"github.com/objectHuang/jenkube/pkg/state"
)

type stubProber struct {
	result *probe.Result
	err    error
	calls  int
}

func (s *stubProber) Probe(context.Context) (*probe.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubApplier struct {
	report *apply.Report
	err    error
	calls  int
}

func (s *stubApplier) Apply(context.Context) (*apply.Report, error) {
	s.calls++
	return s.report, s.err
}

type stubMaterializer struct {
	cred  *credential.Credential
	err   error
	calls int
}

func (s *stubMaterializer) Materialize(context.Context, string, string, time.Duration) (*credential.Credential, error) {
	s.calls++
	return s.cred, s.err
}

type stubActivator struct {
	err   error
	calls int
	doc   *render.Document
}

func (s *stubActivator) Activate(_ context.Context, doc *render.Document) error {
	s.calls++
	s.doc = doc
	return s.err
}

func readyProbe() *probe.Result {
	return &probe.Result{
		Cluster:        probe.Target{Status: probe.StatusReady},
		ClusterVersion: "v1.31.2",
	}
}

func healthyCredential() *credential.Credential {
	now := time.Now()
	return &credential.Credential{
		ID:        "jenkube-jenkins-jenkins",
		Token:     credential.Secret("tok"),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Subject:   credential.Subject{Namespace: "jenkins", ServiceAccount: "jenkins"},
	}
}

func testRunner() (*Runner, *stubProber, *stubApplier, *stubMaterializer, *stubActivator) {
	desired := state.Default()
	desired.ControllerURL = "http://192.168.8.171:8080"
	desired.TunnelAddress = "192.168.8.171:50000"

	p := &stubProber{result: readyProbe()}
	a := &stubApplier{report: &apply.Report{Applied: []apply.ObjectStatus{
		{Kind: apply.KindNamespace, Name: "jenkins", Outcome: apply.OutcomeCreated},
	}}}
	m := &stubMaterializer{cred: healthyCredential()}
	act := &stubActivator{}

	return &Runner{
		Desired:      &desired,
		Prober:       p,
		Applier:      a,
		Materializer: m,
		Activator:    act,
	}, p, a, m, act
}

func TestConverge_AllStagesSucceed(t *testing.T) {
	r, p, a, m, act := testRunner()

	report, err := r.Converge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "success", report.Status)
	assert.Equal(t, "v1.31.2", report.ClusterVersion)
	assert.Equal(t, "jenkube-jenkins-jenkins", report.CredentialID)
	assert.Equal(t, m.cred.ExpiresAt.UTC().Format(time.RFC3339), report.CredentialExpiresAt,
		"report must carry the granted expiry, not the requested TTL")
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Stages, 5)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, 1, act.calls)

	// The document handed to the activator embeds the desired state.
	require.NotNil(t, act.doc)
	assert.Equal(t, "http://192.168.8.171:8080", act.doc.Jenkins.Clouds[0].Kubernetes.JenkinsURL)
}

func TestConverge_ProbeNotReadyAborts(t *testing.T) {
	r, p, a, m, act := testRunner()
	p.result = &probe.Result{
		Cluster: probe.Target{Status: probe.StatusUnreachable, Reason: "connection refused"},
	}

	report, err := r.Converge(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageProbe, stageErr.Stage)
	assert.Equal(t, ExitPrecond, ExitCode(err))
	assert.Equal(t, "probe-failed", report.Status)

	// Nothing downstream may run after a failed precondition.
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 0, m.calls)
	assert.Equal(t, 0, act.calls)
}

func TestConverge_ApplyPartialFailureRecorded(t *testing.T) {
	r, _, a, _, act := testRunner()
	a.report = nil
	a.err = &apply.PartialError{
		Applied: []apply.ObjectStatus{
			{Kind: apply.KindNamespace, Name: "jenkins", Outcome: apply.OutcomeUnchanged},
			{Kind: apply.KindServiceAccount, Name: "jenkins", Outcome: apply.OutcomeUnchanged},
		},
		FailedKind: apply.KindClusterRole,
		FailedName: "jenkins-agent",
		Err:        errors.New("connection reset"),
	}

	report, err := r.Converge(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitApply, ExitCode(err))

	// Partial progress surfaces in the report so the re-run is informed.
	assert.Len(t, report.Applied, 2)
	assert.Equal(t, 0, act.calls)
}

func TestConverge_CredentialFailureBlocksRender(t *testing.T) {
	r, _, _, m, act := testRunner()
	m.cred = nil
	m.err = errors.New("serviceaccounts \"jenkins\" not found")

	_, err := r.Converge(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitCredential, ExitCode(err))
	assert.Equal(t, 0, act.calls)
}

func TestConverge_RenderFailureBlocksActivation(t *testing.T) {
	r, _, _, _, act := testRunner()
	r.Desired.TunnelAddress = "192.168.8.171" // no port

	_, err := r.Converge(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitRender, ExitCode(err))
	assert.Equal(t, 0, act.calls)
}

func TestConverge_ActivationFailure(t *testing.T) {
	r, _, _, _, act := testRunner()
	act.err = errors.New("controller did not become live within 5m0s")

	_, err := r.Converge(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitActivation, ExitCode(err))
}

func TestConverge_ExpiredCredentialReissuedBeforeRender(t *testing.T) {
	r, _, _, m, _ := testRunner()

	expired := healthyCredential()
	expired.IssuedAt = time.Now().Add(-2 * time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	m.cred = expired

	// First call returns the expired credential, second a fresh one.
	fresh := healthyCredential()
	calls := 0
	r.Materializer = materializerFunc(func(ctx context.Context, ns, sa string, ttl time.Duration) (*credential.Credential, error) {
		calls++
		if calls == 1 {
			return expired, nil
		}
		return fresh, nil
	})

	_, err := r.Converge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired credential must be reissued before render")
}

func TestConverge_CanceledBetweenStages(t *testing.T) {
	r, _, a, _, _ := testRunner()

	ctx, cancel := context.WithCancel(context.Background())
	r.Prober = proberFunc(func(context.Context) (*probe.Result, error) {
		cancel() // cancel right after the probe completes
		return readyProbe(), nil
	})

	_, err := r.Converge(ctx)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageApply, stageErr.Stage)
	assert.Equal(t, 0, a.calls)
}

func TestConverge_DocumentHook(t *testing.T) {
	r, _, _, _, _ := testRunner()

	var captured *render.Document
	r.Document = func(doc *render.Document) error {
		captured = doc
		return nil
	}

	_, err := r.Converge(context.Background())
	require.NoError(t, err)
	require.NotNil(t, captured)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitPrecond, ExitCode(&StageError{Stage: StageProbe}))
	assert.Equal(t, ExitApply, ExitCode(&StageError{Stage: StageApply}))
	assert.Equal(t, ExitCredential, ExitCode(&StageError{Stage: StageCredential}))
	assert.Equal(t, ExitRender, ExitCode(&StageError{Stage: StageRender}))
	assert.Equal(t, ExitActivation, ExitCode(&StageError{Stage: StageActivate}))
}

type proberFunc func(context.Context) (*probe.Result, error)

func (f proberFunc) Probe(ctx context.Context) (*probe.Result, error) { return f(ctx) }

type materializerFunc func(context.Context, string, string, time.Duration) (*credential.Credential, error)

func (f materializerFunc) Materialize(ctx context.Context, ns, sa string, ttl time.Duration) (*credential.Credential, error) {
	return f(ctx, ns, sa, ttl)
}
