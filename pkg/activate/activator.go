// Package activate installs the rendered configuration on the controller
// and waits for it to become live.
//
// The wait is bounded polling with exponential backoff, never a fixed
// sleep. Two failure classes are kept apart because they need different
// operator action: TimeoutError (controller never came up, retry later or
// inspect the host) and RejectedError (controller is up but refused the
// configuration, fix the config).
package activate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/objectHuang/jenkube/pkg/render"
)

// DefaultMaxWait bounds the total liveness wait.
const DefaultMaxWait = 5 * time.Minute

// defaultBackoff is the poll schedule: 2s, 3s, 4.5s, ... capped at 30s.
func defaultBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: 2 * time.Second,
		Factor:   1.5,
		Cap:      30 * time.Second,
		Steps:    1 << 30,
	}
}

// TimeoutError means the controller never reported live within the bounded
// wait. The configuration may still be picked up once it starts.
type TimeoutError struct {
	Waited     time.Duration
	LastReason string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("controller did not become live within %s (last: %s)", e.Waited, e.LastReason)
}

// RejectedError means the controller is up but refused the configuration.
// Retrying without changing the document cannot help.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("controller rejected configuration (HTTP %d): %s", e.Status, e.Detail)
}

// Activator applies a rendered document to the controller and confirms
// liveness.
type Activator struct {
	// ConfigPath, when set, receives the serialized document (the
	// controller's configuration-as-code directory).
	ConfigPath string

	// ReloadURL, when set, is POSTed after writing to trigger a config
	// reload on a running controller.
	ReloadURL string

	// HealthURL is polled for liveness. Required.
	HealthURL string

	// HTTPClient used for reload and polling. Nil means a 10s-timeout client.
	HTTPClient *http.Client

	// MaxWait bounds the total liveness wait. Zero means DefaultMaxWait.
	MaxWait time.Duration

	// SystemdUnit, when set, is checked over D-Bus before HTTP polling so a
	// crashed service unit is reported as rejection, not timeout.
	SystemdUnit string

	// Backoff overrides the poll schedule, for tests. Zero value means the
	// default schedule.
	Backoff wait.Backoff

	// unitState overrides the systemd query, for tests.
	unitState func(ctx context.Context, unit string) (string, error)
}

func (a *Activator) client() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Activate writes/submits the document and polls until the controller is
// live, the wait budget is exhausted, or the configuration is rejected.
func (a *Activator) Activate(ctx context.Context, doc *render.Document) error {
	raw, err := doc.Marshal()
	if err != nil {
		return err
	}

	if a.ConfigPath != "" {
		if err := os.WriteFile(a.ConfigPath, raw, 0o600); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		slog.Info("wrote controller configuration", slog.String("path", a.ConfigPath))
	}

	if a.ReloadURL != "" {
		if err := a.reload(ctx, raw); err != nil {
			return err
		}
	}

	if a.SystemdUnit != "" {
		if err := a.checkUnit(ctx); err != nil {
			return err
		}
	}

	return a.awaitLive(ctx)
}

func (a *Activator) reload(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.ReloadURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build reload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-yaml")

	resp, err := a.client().Do(req)
	if err != nil {
		// The controller may simply not be up yet; the liveness poll will
		// tell timeout apart from rejection.
		slog.Warn("reload request failed, falling through to liveness poll",
			slog.String("url", a.ReloadURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RejectedError{Status: resp.StatusCode, Detail: string(bytes.TrimSpace(detail))}
	}

	slog.Info("controller accepted configuration reload", slog.Int("status", resp.StatusCode))
	return nil
}

// awaitLive polls HealthURL with exponential backoff until the deadline.
func (a *Activator) awaitLive(ctx context.Context) error {
	maxWait := a.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}
	backoff := a.Backoff
	if backoff.Duration == 0 {
		backoff = defaultBackoff()
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	start := time.Now()
	lastReason := "not yet polled"

	for {
		live, reason := a.pollOnce(ctx)
		if live {
			slog.Info("controller is live", slog.Duration("waited", time.Since(start)))
			return nil
		}
		lastReason = reason
		slog.Debug("controller not live yet", slog.String("reason", reason))

		select {
		case <-ctx.Done():
			// A canceled run is not an activation timeout; report it as
			// what it is so the operator is not sent chasing the controller.
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return &TimeoutError{Waited: time.Since(start), LastReason: lastReason}
		case <-time.After(backoff.Step()):
		}
	}
}

// pollOnce performs one liveness probe. A 5xx answer counts as "still
// starting" (Jenkins answers 503 while initializing) and a 404 as "not
// live": the health path must exist on a live controller, so a 404 usually
// means a mistyped health URL. Anything else below 500 is proof of life.
func (a *Activator) pollOnce(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.HealthURL, nil)
	if err != nil {
		return false, err.Error()
	}

	resp, err := a.client().Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, fmt.Sprintf("HTTP 404 from %s (check the health URL)", a.HealthURL)
	}
	if resp.StatusCode < 500 {
		return true, ""
	}
	return false, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, a.HealthURL)
}
