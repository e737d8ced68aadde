// Package engine is the deployment orchestration core: it runs the staged
// create/update/delete pipelines, keeps the state store transactionally
// current, and executes compensating actions when a stage fails.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Perkybeet/wam/internal/adapters"
	"github.com/Perkybeet/wam/internal/config"
	"github.com/Perkybeet/wam/internal/core/deployers"
	"github.com/Perkybeet/wam/internal/core/domain"
	"github.com/Perkybeet/wam/internal/store"
)

// Locker hands out per-domain exclusive locks; satisfied by
// store.LockManager.
type Locker interface {
	Acquire(domainName, operation string) (*store.DomainLock, error)
}

// Engine wires the detector registry, the state store and the capability
// adapters into the deployment pipelines. It holds no state of its own:
// every invocation reconstructs truth from the store.
type Engine struct {
	cfg      *config.Config
	storeDB  domain.ApplicationStore
	locks    Locker
	registry *deployers.Registry
	web      domain.WebServerManager
	certs    domain.CertificateManager
	services domain.ServiceManager
	fetcher  domain.SourceFetcher
	prober   domain.HealthProber
	builder  adapters.CommandRunner // install/build commands, long timeout
	logger   *slog.Logger
}

// New assembles an engine from its collaborators.
func New(
	cfg *config.Config,
	storeDB domain.ApplicationStore,
	locks Locker,
	registry *deployers.Registry,
	web domain.WebServerManager,
	certs domain.CertificateManager,
	services domain.ServiceManager,
	fetcher domain.SourceFetcher,
	prober domain.HealthProber,
	builder adapters.CommandRunner,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		storeDB:  storeDB,
		locks:    locks,
		registry: registry,
		web:      web,
		certs:    certs,
		services: services,
		fetcher:  fetcher,
		prober:   prober,
		builder:  builder,
		logger:   logger,
	}
}

// UnitName derives the systemd unit name for a domain.
func UnitName(domainName string) string {
	return "wam-" + strings.ReplaceAll(domainName, ".", "-")
}

// appDir is the per-domain workspace root; the live release lives in
// current/, and during an update the previous release is parked in previous/.
func (e *Engine) appDir(domainName string) string {
	return filepath.Join(e.cfg.AppsDir, domainName)
}

func (e *Engine) currentRelease(domainName string) string {
	return filepath.Join(e.appDir(domainName), "current")
}

func (e *Engine) previousRelease(domainName string) string {
	return filepath.Join(e.appDir(domainName), "previous")
}

// List returns a snapshot of every managed application.
func (e *Engine) List() ([]*domain.Application, error) {
	return e.storeDB.List()
}

// Get returns the record for one domain.
func (e *Engine) Get(domainName string) (*domain.Application, error) {
	return e.storeDB.Get(domain.NormalizeDomain(domainName))
}

// serviceUnit builds the supervised unit descriptor for an application's
// current command set.
func (e *Engine) serviceUnit(app *domain.Application, workingDir string) domain.ServiceUnit {
	return domain.ServiceUnit{
		Name:       UnitName(app.Domain),
		Command:    expandPort(app.StartCommand, app.Port),
		WorkingDir: workingDir,
		User:       e.cfg.ServiceUser,
		Port:       app.Port,
		EnvVars:    app.EnvVars,
	}
}

// expandPort substitutes the {port} placeholder deployer defaults use in
// their command templates.
func expandPort(command string, port int) string {
	return strings.ReplaceAll(command, "{port}", fmt.Sprint(port))
}

// portInUse reports whether any record other than exclude holds the port.
// Deleted records are purged from the store, so everything listed counts.
func (e *Engine) portInUse(port int, exclude string) (bool, error) {
	apps, err := e.storeDB.List()
	if err != nil {
		return false, err
	}
	for _, app := range apps {
		if app.Domain != exclude && app.Port == port {
			return true, nil
		}
	}
	return false, nil
}

// transition persists a lifecycle state change.
func (e *Engine) transition(app *domain.Application, state domain.LifecycleState) error {
	app.State = state
	app.UpdatedAt = time.Now().UTC()
	if err := e.storeDB.Put(app); err != nil {
		return fmt.Errorf("failed to persist %s transition for %s: %w", state, app.Domain, err)
	}
	e.logger.Debug("lifecycle transition",
		slog.String("domain", app.Domain), slog.String("state", string(state)))
	return nil
}

// runCommand executes a build/install command inside the release directory
// with the application's environment applied.
func (e *Engine) runCommand(ctx context.Context, app *domain.Application, dir, command string) error {
	env := commandEnv(app)
	out, err := adapters.RunShell(ctx, e.builder, dir, env, expandPort(command, app.Port))
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "" {
		e.logger.Debug("command output", slog.String("command", command), slog.String("output", out))
	}
	return nil
}

func commandEnv(app *domain.Application) []string {
	env := []string{
		"HOME=/tmp",
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		fmt.Sprintf("PORT=%d", app.Port),
		"NODE_ENV=production",
	}
	for k, v := range app.EnvVars {
		env = append(env, k+"="+v)
	}
	return env
}
