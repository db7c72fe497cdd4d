package activate

import (
	"context"
	"fmt"
	"log/slog"

	sdbus "github.com/coreos/go-systemd/v22/dbus"
)

// checkUnit queries the controller's systemd unit over D-Bus. A failed unit
// is a rejection-class error (the service crashed, polling cannot help);
// any other state falls through to HTTP polling.
func (a *Activator) checkUnit(ctx context.Context) error {
	query := a.unitState
	if query == nil {
		query = systemdUnitState
	}

	st, err := query(ctx, a.SystemdUnit)
	if err != nil {
		// No systemd or no D-Bus access: not fatal, the HTTP poll decides.
		slog.Warn("systemd unit check unavailable",
			slog.String("unit", a.SystemdUnit),
			slog.String("error", err.Error()),
		)
		return nil
	}

	slog.Debug("systemd unit state", slog.String("unit", a.SystemdUnit), slog.String("state", st))

	if st == "failed" {
		return &RejectedError{
			Detail: fmt.Sprintf("systemd unit %q is in failed state", a.SystemdUnit),
		}
	}
	return nil
}

func systemdUnitState(ctx context.Context, unit string) (string, error) {
	conn, err := sdbus.NewWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("failed to query unit %q: %w", unit, err)
	}

	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState type for unit %q", unit)
	}
	return state, nil
}
