package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Perkybeet/wam/internal/config"
	"github.com/Perkybeet/wam/internal/core/deployers"
	"github.com/Perkybeet/wam/internal/core/domain"
	"github.com/Perkybeet/wam/internal/store"
)

// Create runs the full provisioning pipeline for a new application. Stage
// boundaries follow the documented order: validate, lock+record, fetch,
// detect, build, webserver, certificate, service, health check, commit.
// Any failure after the record is written triggers reverse-order
// compensation; a clean rollback leaves no trace of the attempt.
func (e *Engine) Create(ctx context.Context, req domain.CreateRequest) (*domain.Application, error) {
	// Stage 1: validate. Nothing has been committed, so failures surface
	// directly without rollback.
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if existing, err := e.storeDB.Get(req.Domain); err == nil {
		return nil, &domain.ConflictError{
			Domain: req.Domain,
			Reason: fmt.Sprintf("already registered (state %s); delete it first", existing.State),
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if req.Port != 0 {
		taken, err := e.portInUse(req.Port, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, &domain.ConflictError{
				Domain: req.Domain,
				Reason: fmt.Sprintf("port %d is already allocated to another application", req.Port),
			}
		}
	}
	src, err := domain.ParseSource(req.Source, req.Branch)
	if err != nil {
		return nil, err
	}

	// Stage 2: take the per-domain lock and commit the Pending record.
	// Every failure from here on must roll back.
	lock, err := e.locks.Acquire(req.Domain, "create")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// Re-check under the lock: another invocation may have registered the
	// domain between the pre-flight check and the acquire.
	if _, err := e.storeDB.Get(req.Domain); err == nil {
		return nil, &domain.ConflictError{Domain: req.Domain, Reason: "already registered; delete it first"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	app := &domain.Application{
		ID:              uuid.New(),
		Domain:          req.Domain,
		AppType:         req.AppType,
		Source:          src,
		Port:            req.Port,
		State:           domain.StatePending,
		SSLEnabled:      req.SSL,
		InstallCommand:  req.InstallCommand,
		BuildCommand:    req.BuildCommand,
		StartCommand:    req.StartCommand,
		HealthCheckPath: req.HealthCheckPath,
		EnvVars:         req.EnvVars,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.storeDB.Put(app); err != nil {
		return nil, err
	}

	comp := newCompensationStack(e.logger)
	fail := func(stage string, cause error) error {
		return e.rollbackCreate(ctx, app, comp, stage, cause)
	}

	if err := e.transition(app, domain.StateProvisioning); err != nil {
		return nil, fail("record", err)
	}

	// Stage 3: fetch the source into the build workspace.
	release := e.currentRelease(app.Domain)
	e.logger.Info("fetching source",
		slog.String("domain", app.Domain), slog.String("source", src.String()))
	if err := e.fetcher.Fetch(ctx, src, release); err != nil {
		return nil, fail("fetch", err)
	}
	app.ReleasePath = release
	comp.push("build workspace "+e.appDir(app.Domain), func(ctx context.Context) error {
		return os.RemoveAll(e.appDir(app.Domain))
	})

	// Stage 4: resolve the deployer (explicit type wins over detection) and
	// fold in defaults from the project config and the deployer descriptor.
	// The project config is read exactly once, here; its values are copied
	// into the record and never consulted again on later commands.
	pc, err := config.LoadProject(release)
	if err != nil {
		return nil, fail("detect", err)
	}
	dep, err := e.resolveDeployer(app, release, pc)
	if err != nil {
		return nil, fail("detect", err)
	}
	if err := e.applyDefaults(app, pc, dep); err != nil {
		return nil, fail("detect", err)
	}
	taken, err := e.portInUse(app.Port, app.Domain)
	if err != nil {
		return nil, fail("detect", err)
	}
	if taken {
		return nil, fail("detect", &domain.ConflictError{
			Domain: app.Domain,
			Reason: fmt.Sprintf("port %d is already allocated to another application", app.Port),
		})
	}
	if err := e.storeDB.Put(app); err != nil {
		return nil, fail("detect", err)
	}

	// Stage 5: install dependencies, then build.
	if app.InstallCommand != "" {
		e.logger.Info("installing dependencies", slog.String("domain", app.Domain))
		if err := e.runCommand(ctx, app, release, app.InstallCommand); err != nil {
			return nil, fail("install", err)
		}
	}
	if app.BuildCommand != "" {
		e.logger.Info("building application", slog.String("domain", app.Domain))
		if err := e.runCommand(ctx, app, release, app.BuildCommand); err != nil {
			return nil, fail("build", err)
		}
	}

	// Stage 6: webserver site config. The compensation is registered before
	// the stage runs so a half-completed stage (config written, reload
	// failed) still gets cleaned up; removing an absent site is a no-op.
	comp.push("site config for "+app.Domain, func(ctx context.Context) error {
		if err := e.web.DeleteSite(ctx, app.Domain); err != nil {
			return err
		}
		return e.web.Reload(ctx)
	})
	if err := e.provisionSite(ctx, app, false); err != nil {
		return nil, fail("webserver", err)
	}

	// Stage 7: certificate, then re-render the site with the SSL block.
	// If the post-issuance reload fails, the pushed compensation revokes
	// the fresh certificate rather than orphaning it.
	if app.SSLEnabled {
		comp.push("certificate for "+app.Domain, func(ctx context.Context) error {
			return e.certs.Revoke(ctx, app.Domain)
		})
		info, err := e.certs.Issue(ctx, app.Domain, req.Email)
		if err != nil {
			return nil, fail("certificate", err)
		}
		app.Certificate = &domain.CertificateRecord{
			Domain:    info.Domain,
			Provider:  info.Provider,
			CertPath:  info.CertPath,
			KeyPath:   info.KeyPath,
			ExpiresAt: info.ExpiresAt,
		}
		if err := e.storeDB.Put(app); err != nil {
			return nil, fail("certificate", err)
		}
		if err := e.provisionSite(ctx, app, true); err != nil {
			return nil, fail("certificate", err)
		}
	}

	// Stage 8: supervised service.
	unit := UnitName(app.Domain)
	comp.push("systemd unit "+unit, func(ctx context.Context) error {
		if err := e.services.Stop(ctx, unit); err != nil {
			return err
		}
		return e.services.Delete(ctx, unit)
	})
	if err := e.services.Create(ctx, e.serviceUnit(app, release)); err != nil {
		return nil, fail("service", err)
	}
	if err := e.services.Start(ctx, unit); err != nil {
		return nil, fail("service", err)
	}
	app.Service = &domain.ServiceRecord{
		UnitName:  unit,
		RunAsUser: e.cfg.ServiceUser,
		Enabled:   true,
		Running:   true,
	}
	if err := e.storeDB.Put(app); err != nil {
		return nil, fail("service", err)
	}

	// Stage 9: health check with a bounded retry budget.
	e.logger.Info("waiting for health check",
		slog.String("domain", app.Domain), slog.Int("port", app.Port))
	if err := e.prober.Probe(ctx, app.Port, app.HealthCheckPath, e.cfg.HealthCheckTimeout); err != nil {
		return nil, fail("health", err)
	}

	// Stage 10: commit.
	if err := e.transition(app, domain.StateActive); err != nil {
		return nil, fail("record", err)
	}
	e.logger.Info("application deployed",
		slog.String("domain", app.Domain),
		slog.String("type", string(app.AppType)),
		slog.Int("port", app.Port))
	return app, nil
}

// rollbackCreate unwinds every completed stage in reverse. If all
// compensations succeed, the record is deleted as if create never ran and
// the original stage error is surfaced. If any compensation fails, the
// record is kept in Failed with the unremoved resources listed — the one
// case where partial state is deliberately left visible.
func (e *Engine) rollbackCreate(ctx context.Context, app *domain.Application, comp *compensationStack, stage string, cause error) error {
	e.logger.Error("stage failed, rolling back",
		slog.String("domain", app.Domain),
		slog.String("stage", stage),
		slog.Any("error", cause))

	leftovers, _ := comp.unwind(ctx)
	if len(leftovers) == 0 {
		if err := e.storeDB.Delete(app.Domain); err != nil {
			// Record removal is itself a compensation; treat a failure the
			// same as any other leftover.
			e.logger.Error("failed to delete record during rollback", slog.Any("error", err))
			leftovers = append(leftovers, "application record "+app.Domain)
		}
	}
	if len(leftovers) > 0 {
		app.FailedResources = leftovers
		if err := e.transition(app, domain.StateFailed); err != nil {
			e.logger.Error("failed to persist Failed state", slog.Any("error", err))
		}
		return &domain.RollbackError{
			Domain:    app.Domain,
			Cause:     cause,
			Leftovers: leftovers,
		}
	}
	return &domain.DeploymentError{Domain: app.Domain, Stage: stage, Err: cause}
}

// resolveDeployer picks the deployer for an app: explicit type if the user
// or project config named one, otherwise first-match detection over the
// fetched tree in registration order.
func (e *Engine) resolveDeployer(app *domain.Application, release string, pc *config.ProjectConfig) (deployers.Deployer, error) {
	if app.AppType == "" && pc != nil && pc.Type != "" {
		app.AppType = domain.AppType(pc.Type)
		if !app.AppType.IsValid() {
			return deployers.Deployer{}, fmt.Errorf("project config names unknown app type %q", pc.Type)
		}
	}
	if app.AppType != "" {
		return e.registry.Lookup(app.AppType)
	}
	dep, err := e.registry.Detect(release)
	if err != nil {
		return deployers.Deployer{}, err
	}
	app.AppType = dep.Type
	e.logger.Info("detected application type",
		slog.String("domain", app.Domain), slog.String("type", string(dep.Type)))
	return dep, nil
}

// applyDefaults fills unset record fields from the project config (already
// read by the caller) and then from the deployer descriptor.
func (e *Engine) applyDefaults(app *domain.Application, pc *config.ProjectConfig, dep deployers.Deployer) error {
	if pc != nil {
		if app.Port == 0 && pc.Port != 0 {
			app.Port = pc.Port
		}
		if app.BuildCommand == "" {
			app.BuildCommand = pc.BuildCommand
		}
		if app.StartCommand == "" {
			app.StartCommand = pc.StartCommand
		}
		if app.HealthCheckPath == "" {
			app.HealthCheckPath = pc.HealthCheck
		}
		if len(pc.Env) > 0 {
			if app.EnvVars == nil {
				app.EnvVars = make(map[string]string, len(pc.Env))
			}
			for k, v := range pc.Env {
				if _, exists := app.EnvVars[k]; !exists {
					app.EnvVars[k] = v
				}
			}
		}
	}

	if app.Port == 0 {
		if dep.DefaultPort == 0 {
			return &domain.ValidationError{Field: "port", Reason: fmt.Sprintf("app type %s has no default port; supply one", app.AppType)}
		}
		app.Port = dep.DefaultPort
	}
	if app.InstallCommand == "" {
		app.InstallCommand = dep.InstallCommand
	}
	if app.BuildCommand == "" {
		app.BuildCommand = dep.BuildCommand
	}
	if app.StartCommand == "" {
		app.StartCommand = dep.StartCommand
	}
	if app.HealthCheckPath == "" {
		app.HealthCheckPath = dep.HealthCheckPath
	}
	if app.StartCommand == "" {
		return &domain.ValidationError{Field: "start_command", Reason: "no start command resolved for application"}
	}
	return nil
}

// provisionSite renders and installs the site config and reloads the
// webserver, recording the sub-resource on the app.
func (e *Engine) provisionSite(ctx context.Context, app *domain.Application, ssl bool) error {
	cfg := domain.SiteConfig{
		Domain:  app.Domain,
		Port:    app.Port,
		AppType: app.AppType,
		SSL:     ssl,
	}
	if ssl {
		cfg.CertPath = app.Certificate.CertPath
		cfg.KeyPath = app.Certificate.KeyPath
	}
	path, err := e.web.CreateSite(ctx, cfg)
	if err != nil {
		return err
	}
	if err := e.web.EnableSite(ctx, app.Domain); err != nil {
		return err
	}
	if err := e.web.Reload(ctx); err != nil {
		return err
	}
	app.Site = &domain.SiteRecord{
		WebServer:  e.web.Kind(),
		ConfigPath: path,
		Enabled:    true,
	}
	return e.storeDB.Put(app)
}
