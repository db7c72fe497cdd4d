// Package probe verifies connectivity and auth to the external systems
// before any mutation takes place.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/version"
)

// Status classifies the outcome of a probe.
type Status string

const (
	StatusReady        Status = "Ready"
	StatusUnreachable  Status = "Unreachable"
	StatusUnauthorized Status = "Unauthorized"
)

// DefaultTimeout bounds the whole probe; the run must fail fast rather than
// hang on a dead endpoint.
const DefaultTimeout = 10 * time.Second

// VersionGetter is the read-only cluster call used for probing. The
// Kubernetes discovery client satisfies it.
type VersionGetter interface {
	ServerVersion() (*version.Info, error)
}

// Target is the per-endpoint outcome of a probe.
type Target struct {
	Status Status `json:"status" yaml:"status"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Result aggregates the cluster and controller probes.
type Result struct {
	Cluster        Target `json:"cluster" yaml:"cluster"`
	ClusterVersion string `json:"clusterVersion,omitempty" yaml:"clusterVersion,omitempty"`
	Controller     Target `json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Ready reports whether every probed target is reachable and authorized.
func (r *Result) Ready() bool {
	if r.Cluster.Status != StatusReady {
		return false
	}
	return r.Controller.Status == "" || r.Controller.Status == StatusReady
}

// Prober checks the external control plane and, optionally, the controller
// endpoint. All checks are read-only.
type Prober struct {
	// Discovery performs the cluster version call.
	Discovery VersionGetter

	// ControllerURL, when non-empty, is probed for TCP/HTTP reachability.
	// Any HTTP response counts: the controller may be up but unconfigured
	// at this point, which is fine.
	ControllerURL string

	// HTTPClient used for the controller probe. Nil means a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// Timeout bounds the whole probe. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Probe runs the cluster and controller checks concurrently and reports the
// classified result. The returned error is only non-nil for internal
// failures; unreachable or unauthorized targets are reported in the Result.
func (p *Prober) Probe(ctx context.Context) (*Result, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := &Result{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.Cluster, res.ClusterVersion = p.probeCluster(ctx)
		return nil
	})

	if p.ControllerURL != "" {
		g.Go(func() error {
			res.Controller = p.probeController(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

// probeCluster runs the version call in its own goroutine and races it
// against the probe deadline: the discovery interface takes no context, so a
// hung API server would otherwise stall the probe indefinitely. A straggling
// call is abandoned once the deadline passes.
func (p *Prober) probeCluster(ctx context.Context) (Target, string) {
	type answer struct {
		info *version.Info
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		info, err := p.Discovery.ServerVersion()
		ch <- answer{info: info, err: err}
	}()

	select {
	case <-ctx.Done():
		target := Target{
			Status: StatusUnreachable,
			Reason: fmt.Sprintf("cluster version query did not answer: %v", ctx.Err()),
		}
		slog.Warn("cluster probe failed",
			slog.String("status", string(target.Status)),
			slog.String("reason", target.Reason),
		)
		return target, ""
	case a := <-ch:
		if a.err != nil {
			target := classifyClusterError(a.err)
			slog.Warn("cluster probe failed",
				slog.String("status", string(target.Status)),
				slog.String("reason", target.Reason),
			)
			return target, ""
		}
		slog.Debug("cluster probe succeeded", slog.String("version", a.info.GitVersion))
		return Target{Status: StatusReady}, a.info.GitVersion
	}
}

func (p *Prober) probeController(ctx context.Context) Target {
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ControllerURL, nil)
	if err != nil {
		return Target{Status: StatusUnreachable, Reason: err.Error()}
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("controller probe failed", slog.String("url", p.ControllerURL), slog.String("error", err.Error()))
		return Target{Status: StatusUnreachable, Reason: err.Error()}
	}
	defer resp.Body.Close()

	slog.Debug("controller probe succeeded",
		slog.String("url", p.ControllerURL),
		slog.Int("status", resp.StatusCode),
	)
	return Target{Status: StatusReady}
}

func classifyClusterError(err error) Target {
	if apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err) {
		return Target{Status: StatusUnauthorized, Reason: err.Error()}
	}
	return Target{Status: StatusUnreachable, Reason: fmt.Sprintf("cluster version query failed: %v", err)}
}
