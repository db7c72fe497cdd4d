// Package pipeline sequences the convergence stages: probe, apply,
// credential, render, activate. Stages run strictly in order; each is a
// checkpoint, and a failure aborts the run leaving earlier stages' effects
// intact. The whole run is safely re-entrant.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/objectHuang/jenkube/pkg/apply"
	"github.com/objectHuang/jenkube/pkg/credential"
	"github.com/objectHuang/jenkube/pkg/probe"
	"github.com/objectHuang/jenkube/pkg/render"
	"github.com/objectHuang/jenkube/pkg/state"
)

// Prober verifies reachability before any mutation.
type Prober interface {
	Probe(ctx context.Context) (*probe.Result, error)
}

// Applier converges the cluster-side objects.
type Applier interface {
	Apply(ctx context.Context) (*apply.Report, error)
}

// Materializer issues the controller credential.
type Materializer interface {
	Materialize(ctx context.Context, namespace, serviceAccount string, ttl time.Duration) (*credential.Credential, error)
}

// Activator installs the rendered document and awaits liveness.
type Activator interface {
	Activate(ctx context.Context, doc *render.Document) error
}

// StageReport records one stage's outcome for the run report.
type StageReport struct {
	Stage    Stage         `json:"stage" yaml:"stage"`
	Status   string        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// RunReport is the operator-facing summary of one convergence run. Partial
// progress is always recorded so a re-run is informed, not blind.
type RunReport struct {
	RunID               string               `json:"runId" yaml:"runId"`
	StartedAt           time.Time            `json:"startedAt" yaml:"startedAt"`
	Duration            time.Duration        `json:"duration" yaml:"duration"`
	Status              string               `json:"status" yaml:"status"`
	ClusterVersion      string               `json:"clusterVersion,omitempty" yaml:"clusterVersion,omitempty"`
	Stages              []StageReport        `json:"stages" yaml:"stages"`
	Applied             []apply.ObjectStatus `json:"applied,omitempty" yaml:"applied,omitempty"`
	CredentialID        string               `json:"credentialId,omitempty" yaml:"credentialId,omitempty"`
	CredentialExpiresAt string               `json:"credentialExpiresAt,omitempty" yaml:"credentialExpiresAt,omitempty"`
}

// Runner wires the five stages together.
type Runner struct {
	Desired      *state.DesiredState
	Prober       Prober
	Applier      Applier
	Materializer Materializer
	Activator    Activator

	// Document receives the rendered document before activation, e.g. to
	// persist it for operator inspection. Optional.
	Document func(*render.Document) error
}

// Converge runs all stages in order. It returns the run report alongside
// the error so partial progress is visible even on failure.
func (r *Runner) Converge(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Status:    "running",
	}
	log := slog.With(slog.String("run", report.RunID))

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		lastRunTimestamp.SetToCurrentTime()
	}()

	fail := func(stage Stage, err error) (*RunReport, error) {
		report.Status = string(stage) + "-failed"
		runsTotal.WithLabelValues(string(stage)).Inc()
		log.Error("convergence failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		return report, &StageError{Stage: stage, Err: err}
	}

	// Stage 1: probe. Fatal precondition, never retried here.
	probeRes, err := r.runProbe(ctx, report)
	if err != nil {
		return fail(StageProbe, err)
	}
	if !probeRes.Ready() {
		return fail(StageProbe, probeError(probeRes))
	}
	report.ClusterVersion = probeRes.ClusterVersion

	// Stage 2: apply.
	if err := ctx.Err(); err != nil {
		return fail(StageApply, err)
	}
	applyReport, err := r.runApply(ctx, report)
	if err != nil {
		return fail(StageApply, err)
	}
	report.Applied = applyReport.Applied

	// Stage 3: credential.
	if err := ctx.Err(); err != nil {
		return fail(StageCredential, err)
	}
	cred, err := r.runCredential(ctx, report)
	if err != nil {
		return fail(StageCredential, err)
	}
	report.CredentialID = cred.ID
	report.CredentialExpiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339)

	// Stage 4: render. Pure; an expired credential is reissued first so the
	// document never embeds a dead token.
	if err := ctx.Err(); err != nil {
		return fail(StageRender, err)
	}
	if cred.Expired(time.Now()) {
		cred, err = r.runCredential(ctx, report)
		if err != nil {
			return fail(StageCredential, err)
		}
	}
	doc, err := r.runRender(report, cred)
	if err != nil {
		return fail(StageRender, err)
	}

	if r.Document != nil {
		if err := r.Document(doc); err != nil {
			return fail(StageRender, err)
		}
	}

	// Stage 5: activate.
	if err := ctx.Err(); err != nil {
		return fail(StageActivate, err)
	}
	if err := r.runActivate(ctx, report, doc); err != nil {
		return fail(StageActivate, err)
	}

	report.Status = "success"
	runsTotal.WithLabelValues("success").Inc()
	log.Info("convergence complete",
		slog.Duration("duration", time.Since(report.StartedAt)),
		slog.Int("objects", len(report.Applied)),
	)

	return report, nil
}

func probeError(res *probe.Result) error {
	if res.Cluster.Status != probe.StatusReady {
		return fmt.Errorf("cluster %s: %s", res.Cluster.Status, res.Cluster.Reason)
	}
	return fmt.Errorf("controller %s: %s", res.Controller.Status, res.Controller.Reason)
}

func (r *Runner) runProbe(ctx context.Context, report *RunReport) (*probe.Result, error) {
	done := stageTimer(report, StageProbe)
	res, err := r.Prober.Probe(ctx)
	if err != nil {
		done("failed", err.Error())
		return nil, err
	}
	if !res.Ready() {
		done("failed", probeError(res).Error())
		return res, nil
	}
	done("ok", "")
	return res, nil
}

func (r *Runner) runApply(ctx context.Context, report *RunReport) (*apply.Report, error) {
	done := stageTimer(report, StageApply)
	applyReport, err := r.Applier.Apply(ctx)
	if err != nil {
		// Record what converged before the failure.
		var partial *apply.PartialError
		if errors.As(err, &partial) {
			report.Applied = partial.Applied
			for _, s := range partial.Applied {
				objectsApplied.WithLabelValues(string(s.Outcome)).Inc()
			}
		}
		done("failed", err.Error())
		return nil, err
	}
	for _, s := range applyReport.Applied {
		objectsApplied.WithLabelValues(string(s.Outcome)).Inc()
	}
	done("ok", "")
	return applyReport, nil
}

func (r *Runner) runCredential(ctx context.Context, report *RunReport) (*credential.Credential, error) {
	done := stageTimer(report, StageCredential)
	cred, err := r.Materializer.Materialize(ctx, r.Desired.Namespace, r.Desired.ServiceAccount, r.Desired.CredentialTTL.Duration())
	if err != nil {
		done("failed", err.Error())
		return nil, err
	}
	done("ok", "")
	return cred, nil
}

func (r *Runner) runRender(report *RunReport, cred *credential.Credential) (*render.Document, error) {
	done := stageTimer(report, StageRender)
	doc, err := render.Render(r.Desired, cred)
	if err != nil {
		done("failed", err.Error())
		return nil, err
	}
	done("ok", "")
	return doc, nil
}

func (r *Runner) runActivate(ctx context.Context, report *RunReport, doc *render.Document) error {
	done := stageTimer(report, StageActivate)
	if err := r.Activator.Activate(ctx, doc); err != nil {
		done("failed", err.Error())
		return err
	}
	done("ok", "")
	return nil
}

// stageTimer starts timing a stage and returns its completion callback.
func stageTimer(report *RunReport, stage Stage) func(status, detail string) {
	start := time.Now()
	return func(status, detail string) {
		elapsed := time.Since(start)
		stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
		report.Stages = append(report.Stages, StageReport{
			Stage:    stage,
			Status:   status,
			Duration: elapsed,
			Detail:   detail,
		})
	}
}
