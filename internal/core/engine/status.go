package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Perkybeet/wam/internal/core/domain"
	"github.com/Perkybeet/wam/internal/store"
)

// StatusReport pairs a persisted record with the live view of its host
// resources, plus any disagreements between the two.
type StatusReport struct {
	App        *domain.Application
	Service    domain.ServiceStatus
	Mismatches []string
}

// Status loads the record for a domain and reconciles it against the host:
// site config present, unit installed and running, certificate material on
// disk. Disagreements are reported as a CorruptStateError, never repaired
// silently. A record locked by an in-flight operation is reported as-is
// with its non-terminal state.
func (e *Engine) Status(ctx context.Context, domainName string) (*StatusReport, error) {
	domainName = domain.NormalizeDomain(domainName)
	app, err := e.storeDB.Get(domainName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "domain", Reason: fmt.Sprintf("%s is not a managed application", domainName)}
		}
		return nil, err
	}

	report := &StatusReport{App: app}

	if app.Site != nil {
		if _, err := os.Stat(app.Site.ConfigPath); err != nil {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("record references site config %s which does not exist", app.Site.ConfigPath))
		}
	}
	if app.Service != nil {
		status, err := e.services.Status(ctx, app.Service.UnitName)
		if err != nil {
			return nil, err
		}
		report.Service = status
		if !status.Exists {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("record references systemd unit %s which is not installed", app.Service.UnitName))
		}
		if app.State == domain.StateActive && status.Exists && !status.Running {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("unit %s is installed but not running for an active application", app.Service.UnitName))
		}
	}
	if app.Certificate != nil {
		if _, err := os.Stat(app.Certificate.CertPath); err != nil {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("record references certificate %s which does not exist", app.Certificate.CertPath))
		}
	}
	if app.ReleasePath != "" && app.State == domain.StateActive {
		if _, err := os.Stat(app.ReleasePath); err != nil {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("record references release %s which does not exist", app.ReleasePath))
		}
	}

	if len(report.Mismatches) > 0 {
		return report, &domain.CorruptStateError{Domain: domainName, Details: report.Mismatches}
	}
	return report, nil
}

// Restart bounces the application's service and re-runs the health check.
// Webserver and certificate state are untouched.
func (e *Engine) Restart(ctx context.Context, domainName string) error {
	domainName = domain.NormalizeDomain(domainName)
	lock, err := e.locks.Acquire(domainName, "restart")
	if err != nil {
		return err
	}
	defer lock.Release()

	// Read the record under the lock so a concurrent delete cannot slip
	// between the lookup and the restart.
	app, err := e.storeDB.Get(domainName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.ValidationError{Field: "domain", Reason: fmt.Sprintf("%s is not a managed application", domainName)}
		}
		return err
	}
	if app.Service == nil {
		return &domain.CorruptStateError{Domain: domainName, Details: []string{"no service recorded for application"}}
	}

	if err := e.services.Restart(ctx, app.Service.UnitName); err != nil {
		return &domain.DeploymentError{Domain: domainName, Stage: "restart", Err: err}
	}
	if err := e.prober.Probe(ctx, app.Port, app.HealthCheckPath, e.cfg.HealthCheckTimeout); err != nil {
		return &domain.DeploymentError{Domain: domainName, Stage: "restart", Err: err}
	}
	app.Service.Running = true
	if err := e.storeDB.Put(app); err != nil {
		return err
	}
	e.logger.Info("application restarted", slog.String("domain", domainName))
	return nil
}

// Logs returns the last n journal lines for the application's service.
func (e *Engine) Logs(ctx context.Context, domainName string, lines int) (string, error) {
	domainName = domain.NormalizeDomain(domainName)
	app, err := e.storeDB.Get(domainName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &domain.ValidationError{Field: "domain", Reason: fmt.Sprintf("%s is not a managed application", domainName)}
		}
		return "", err
	}
	if app.Service == nil {
		return "", &domain.CorruptStateError{Domain: domainName, Details: []string{"no service recorded for application"}}
	}
	return e.services.Logs(ctx, app.Service.UnitName, lines)
}
