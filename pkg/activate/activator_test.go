package activate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/render"
	"github.com/objectHuang/jenkube/pkg/state"
)

func testDocument(t *testing.T) *render.Document {
	t.Helper()

	desired := state.Default()
	desired.ControllerURL = "http://192.168.8.171:8080"
	desired.TunnelAddress = "192.168.8.171:50000"

	now := time.Now()
	doc, err := render.Render(&desired, &credential.Credential{
		ID:        "jenkube-jenkins-jenkins",
		Token:     credential.Secret("test-token"),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Subject:   credential.Subject{Namespace: "jenkins", ServiceAccount: "jenkins"},
	})
	require.NoError(t, err)
	return doc
}

func fastBackoff() wait.Backoff {
	return wait.Backoff{Duration: time.Millisecond, Factor: 1.1, Cap: 5 * time.Millisecond, Steps: 1 << 30}
}

func TestActivate_WritesConfigAndBecomesLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "jenkins.yaml")
	a := &Activator{
		ConfigPath: path,
		HealthURL:  srv.URL + "/login",
		MaxWait:    time.Second,
		Backoff:    fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := render.Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, "jenkube-jenkins-jenkins", parsed.Jenkins.Clouds[0].Kubernetes.CredentialsID)
}

func TestActivate_RetriesWhileControllerStarts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Jenkins answers 503 while initializing.
		if calls.Add(1) < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL: srv.URL,
		MaxWait:   2 * time.Second,
		Backoff:   fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(4))
}

func TestActivate_TimeoutWhenNeverLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL: srv.URL,
		MaxWait:   50 * time.Millisecond,
		Backoff:   fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.Error(t, err)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Contains(t, timeout.LastReason, "HTTP 503")

	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected), "timeout must not be classified as rejection")
}

func TestActivate_CanceledRunIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL: srv.URL,
		MaxWait:   time.Minute,
		Backoff:   fastBackoff(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := a.Activate(ctx, testDocument(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var timeout *TimeoutError
	assert.False(t, errors.As(err, &timeout), "a canceled run must not be reported as an activation timeout")
}

func TestActivate_NotFoundHealthURLIsNotLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL: srv.URL + "/logn", // typo'd path
		MaxWait:   50 * time.Millisecond,
		Backoff:   fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.Error(t, err)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Contains(t, timeout.LastReason, "404")
	assert.Contains(t, timeout.LastReason, "check the health URL")
}

func TestActivate_RejectedConfiguration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reload", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("unknown attribute 'jenkinsTunel'"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := &Activator{
		ReloadURL: srv.URL + "/reload",
		HealthURL: srv.URL + "/login",
		MaxWait:   time.Second,
		Backoff:   fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Contains(t, rejected.Detail, "jenkinsTunel")

	var timeout *TimeoutError
	assert.False(t, errors.As(err, &timeout), "rejection must not be classified as timeout")
}

func TestActivate_ReloadTransportErrorFallsThroughToPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	a := &Activator{
		ReloadURL: dead.URL + "/reload",
		HealthURL: srv.URL,
		MaxWait:   time.Second,
		Backoff:   fastBackoff(),
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.NoError(t, err, "unreachable reload endpoint must defer to liveness polling")
}

func TestActivate_FailedSystemdUnitIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL:   srv.URL,
		MaxWait:     time.Second,
		Backoff:     fastBackoff(),
		SystemdUnit: "jenkins.service",
		unitState: func(context.Context, string) (string, error) {
			return "failed", nil
		},
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Detail, "jenkins.service")
}

func TestActivate_UnavailableSystemdIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &Activator{
		HealthURL:   srv.URL,
		MaxWait:     time.Second,
		Backoff:     fastBackoff(),
		SystemdUnit: "jenkins.service",
		unitState: func(context.Context, string) (string, error) {
			return "", errors.New("dbus: no such socket")
		},
	}

	err := a.Activate(context.Background(), testDocument(t))
	require.NoError(t, err)
}
