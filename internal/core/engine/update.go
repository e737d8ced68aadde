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

// updateSnapshot captures what a rollback needs to put back: the command
// fields as they were before the update, and whether the service unit has
// already been replaced with the new start command.
type updateSnapshot struct {
	buildCommand string
	startCommand string
	unitReplaced bool
}

// Update re-deploys an Active application: it snapshots the current release,
// fetches and builds the new one, restarts the service, and health-checks.
// A failed health check restores the snapshot and returns the record to
// Active while still surfacing the failure; only a failed restore marks the
// record Failed. Webserver and certificate identity are untouched unless the
// start command changes.
func (e *Engine) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lock, err := e.locks.Acquire(req.Domain, "update")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// The record is read only once the lock is held: a concurrent invocation
	// may have deleted or transitioned the application in the meantime, and a
	// stale pre-lock read would resurrect a purged record.
	app, err := e.storeDB.Get(req.Domain)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "domain", Reason: fmt.Sprintf("%s is not a managed application", req.Domain)}
		}
		return nil, err
	}
	if app.State != domain.StateActive {
		return nil, &domain.ConflictError{
			Domain: req.Domain,
			Reason: fmt.Sprintf("update requires an active application, current state is %s", app.State),
		}
	}

	if err := e.transition(app, domain.StateUpdating); err != nil {
		return nil, err
	}

	// Resolve the requested source before anything on disk is disturbed.
	src := app.Source
	if req.Source != "" {
		if src, err = domain.ParseSource(req.Source, req.Branch); err != nil {
			return nil, e.failUpdate(app, err)
		}
	} else if req.Branch != "" {
		src.Branch = req.Branch
	}

	// Snapshot the running release so a bad build can be rolled back.
	current := e.currentRelease(app.Domain)
	previous := e.previousRelease(app.Domain)
	if err := os.RemoveAll(previous); err != nil {
		return nil, e.failUpdate(app, fmt.Errorf("failed to clear previous snapshot: %w", err))
	}
	app.PreviousReleasePath = previous
	if err := e.storeDB.Put(app); err != nil {
		app.PreviousReleasePath = ""
		return nil, e.failUpdate(app, err)
	}
	if err := os.Rename(current, previous); err != nil {
		app.PreviousReleasePath = ""
		return nil, e.failUpdate(app, fmt.Errorf("failed to snapshot current release: %w", err))
	}

	// Apply requested command changes, keeping the old values so a rollback
	// restores the record and unit exactly as they were.
	snap := updateSnapshot{buildCommand: app.BuildCommand, startCommand: app.StartCommand}
	startChanged := req.StartCommand != "" && req.StartCommand != app.StartCommand
	if req.BuildCommand != "" {
		app.BuildCommand = req.BuildCommand
	}
	if req.StartCommand != "" {
		app.StartCommand = req.StartCommand
	}

	// Re-run fetch and build against the (possibly new) source.
	if err := e.rebuild(ctx, app, src, current); err != nil {
		return e.restorePrevious(ctx, app, snap, err)
	}
	app.Source = src
	app.ReleasePath = current

	unit := UnitName(app.Domain)
	if startChanged {
		snap.unitReplaced = true
		if err := e.services.Create(ctx, e.serviceUnit(app, current)); err != nil {
			return e.restorePrevious(ctx, app, snap, err)
		}
	}
	if err := e.services.Restart(ctx, unit); err != nil {
		return e.restorePrevious(ctx, app, snap, err)
	}

	// Post-update health check decides whether the new release sticks.
	if err := e.prober.Probe(ctx, app.Port, app.HealthCheckPath, e.cfg.HealthCheckTimeout); err != nil {
		return e.restorePrevious(ctx, app, snap, err)
	}

	// Success: the snapshot is no longer needed.
	if err := os.RemoveAll(previous); err != nil {
		e.logger.Warn("failed to discard previous release", slog.Any("error", err))
	}
	app.PreviousReleasePath = ""
	if err := e.transition(app, domain.StateActive); err != nil {
		return nil, err
	}
	e.logger.Info("application updated", slog.String("domain", app.Domain))
	return app, nil
}

// rebuild fetches src into dest and runs the install/build commands.
func (e *Engine) rebuild(ctx context.Context, app *domain.Application, src domain.Source, dest string) error {
	if err := e.fetcher.Fetch(ctx, src, dest); err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if app.InstallCommand != "" {
		if err := e.runCommand(ctx, app, dest, app.InstallCommand); err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
	}
	if app.BuildCommand != "" {
		if err := e.runCommand(ctx, app, dest, app.BuildCommand); err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
	}
	return nil
}

// restorePrevious puts the snapshot back: the command fields are reverted, a
// replaced unit is recreated with the old start command, and the service is
// restarted and re-checked. If the old release serves again the record
// returns to Active and the update failure is surfaced as a DeploymentError;
// if the restore itself fails the record is marked Failed.
func (e *Engine) restorePrevious(ctx context.Context, app *domain.Application, snap updateSnapshot, cause error) (*domain.Application, error) {
	e.logger.Error("update failed, restoring previous release",
		slog.String("domain", app.Domain), slog.Any("error", cause))

	current := e.currentRelease(app.Domain)
	previous := e.previousRelease(app.Domain)
	app.BuildCommand = snap.buildCommand
	app.StartCommand = snap.startCommand

	restore := func() error {
		if err := os.RemoveAll(current); err != nil {
			return fmt.Errorf("failed to remove broken release: %w", err)
		}
		if err := os.Rename(previous, current); err != nil {
			return fmt.Errorf("failed to restore previous release: %w", err)
		}
		if snap.unitReplaced {
			if err := e.services.Create(ctx, e.serviceUnit(app, current)); err != nil {
				return fmt.Errorf("failed to restore service unit: %w", err)
			}
		}
		if err := e.services.Restart(ctx, UnitName(app.Domain)); err != nil {
			return err
		}
		return e.prober.Probe(ctx, app.Port, app.HealthCheckPath, e.cfg.HealthCheckTimeout)
	}

	if err := restore(); err != nil {
		e.logger.Error("restore failed", slog.String("domain", app.Domain), slog.Any("error", err))
		app.FailedResources = []string{"release restore for " + app.Domain}
		if terr := e.transition(app, domain.StateFailed); terr != nil {
			e.logger.Error("failed to persist Failed state", slog.Any("error", terr))
		}
		return nil, &domain.RollbackError{
			Domain:    app.Domain,
			Cause:     cause,
			Leftovers: []string{"previous release could not be restored: " + err.Error()},
		}
	}

	app.PreviousReleasePath = ""
	app.ReleasePath = current
	if err := e.transition(app, domain.StateActive); err != nil {
		return nil, err
	}
	return app, &domain.DeploymentError{
		Domain: app.Domain,
		Stage:  "update",
		Err:    fmt.Errorf("update rolled back to previous release: %w", cause),
	}
}

// failUpdate handles errors in update preparation, before the old release
// was disturbed: the running application is untouched, so the record simply
// returns to Active and the failure is surfaced.
func (e *Engine) failUpdate(app *domain.Application, cause error) error {
	if err := e.transition(app, domain.StateActive); err != nil {
		e.logger.Error("failed to restore Active state", slog.Any("error", err))
	}
	return &domain.DeploymentError{Domain: app.Domain, Stage: "update", Err: cause}
}
