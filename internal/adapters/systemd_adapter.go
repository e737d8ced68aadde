package adapters

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// SystemdAdapter implements domain.ServiceManager by writing unit files and
// driving systemctl/journalctl.
type SystemdAdapter struct {
	unitDir string
	runner  CommandRunner
	logger  *slog.Logger
	tmpl    *template.Template
}

// NewSystemdAdapter builds the adapter.
func NewSystemdAdapter(unitDir string, runner CommandRunner, logger *slog.Logger) (*SystemdAdapter, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/systemd-unit.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse systemd unit template: %w", err)
	}
	return &SystemdAdapter{unitDir: unitDir, runner: runner, logger: logger, tmpl: tmpl}, nil
}

func (a *SystemdAdapter) unitPath(unitName string) string {
	return filepath.Join(a.unitDir, unitName+".service")
}

// Create writes the unit file, reloads the daemon, and enables the unit.
func (a *SystemdAdapter) Create(ctx context.Context, unit domain.ServiceUnit) error {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, unit); err != nil {
		return fmt.Errorf("failed to render unit %s: %w", unit.Name, err)
	}
	path := a.unitPath(unit.Name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write unit file %s: %w", path, err)
	}
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload failed: %w", err)
	}
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "enable", unit.Name+".service"); err != nil {
		return fmt.Errorf("failed to enable unit %s: %w", unit.Name, err)
	}
	a.logger.Debug("systemd unit installed", slog.String("unit", unit.Name), slog.String("path", path))
	return nil
}

func (a *SystemdAdapter) Start(ctx context.Context, unitName string) error {
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "start", unitName+".service"); err != nil {
		return fmt.Errorf("failed to start %s: %w", unitName, err)
	}
	return nil
}

// Stop is tolerant of units that are gone or already stopped; delete and
// rollback paths call it unconditionally.
func (a *SystemdAdapter) Stop(ctx context.Context, unitName string) error {
	out, err := a.runner.Run(ctx, "", nil, "systemctl", "stop", unitName+".service")
	if err != nil {
		if strings.Contains(out, "not loaded") || strings.Contains(out, "could not be found") {
			return nil
		}
		return fmt.Errorf("failed to stop %s: %w", unitName, err)
	}
	return nil
}

func (a *SystemdAdapter) Restart(ctx context.Context, unitName string) error {
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "restart", unitName+".service"); err != nil {
		return fmt.Errorf("failed to restart %s: %w", unitName, err)
	}
	return nil
}

// Status probes the unit without treating an inactive unit as a command
// error: systemctl is-active exits non-zero for anything but "active".
func (a *SystemdAdapter) Status(ctx context.Context, unitName string) (domain.ServiceStatus, error) {
	status := domain.ServiceStatus{}
	if _, err := os.Stat(a.unitPath(unitName)); err == nil {
		status.Exists = true
	}
	out, _ := a.runner.Run(ctx, "", nil, "systemctl", "is-active", unitName+".service")
	status.Running = strings.TrimSpace(out) == "active"
	out, _ = a.runner.Run(ctx, "", nil, "systemctl", "is-enabled", unitName+".service")
	status.Enabled = strings.TrimSpace(out) == "enabled"
	return status, nil
}

// Delete disables and removes the unit file. Absent unit files are a
// success.
func (a *SystemdAdapter) Delete(ctx context.Context, unitName string) error {
	out, err := a.runner.Run(ctx, "", nil, "systemctl", "disable", unitName+".service")
	if err != nil && !strings.Contains(out, "does not exist") && !strings.Contains(out, "No such file") {
		return fmt.Errorf("failed to disable %s: %w", unitName, err)
	}
	rmErr := os.Remove(a.unitPath(unitName))
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("failed to remove unit file for %s: %w", unitName, rmErr)
	}
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload failed: %w", err)
	}
	return nil
}

// Logs returns the last `lines` journal entries for the unit.
func (a *SystemdAdapter) Logs(ctx context.Context, unitName string, lines int) (string, error) {
	out, err := a.runner.Run(ctx, "", nil, "journalctl", "-u", unitName+".service", "-n", strconv.Itoa(lines), "--no-pager")
	if err != nil {
		return "", fmt.Errorf("failed to read logs for %s: %w", unitName, err)
	}
	return out, nil
}
