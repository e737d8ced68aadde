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

// Delete tears an application down: service, certificate, site config, and
// build workspace, in the reverse of provisioning order. Every removal is
// idempotent — an already-absent resource counts as removed — so the
// operation can be re-run against a Failed record until everything is gone.
// Deleting an unknown domain is a success with zero side effects.
func (e *Engine) Delete(ctx context.Context, domainName string) error {
	domainName = domain.NormalizeDomain(domainName)
	if err := domain.ValidateDomainName(domainName); err != nil {
		return err
	}

	// Fast path: an unknown domain is a success without touching the lock.
	if _, err := e.storeDB.Get(domainName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("nothing to delete", slog.String("domain", domainName))
			return nil
		}
		return err
	}

	lock, err := e.locks.Acquire(domainName, "delete")
	if err != nil {
		return err
	}
	defer lock.Release()

	// Re-read under the lock; a concurrent invocation may have finished the
	// teardown while this one was waiting.
	app, err := e.storeDB.Get(domainName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Info("nothing to delete", slog.String("domain", domainName))
			return nil
		}
		return err
	}

	if err := e.transition(app, domain.StateDeleting); err != nil {
		return err
	}

	var leftovers []string
	unit := UnitName(domainName)

	if err := e.services.Stop(ctx, unit); err != nil {
		e.logger.Error("failed to stop service", slog.Any("error", err))
		leftovers = append(leftovers, "running service "+unit)
	}
	if err := e.services.Delete(ctx, unit); err != nil {
		e.logger.Error("failed to remove service unit", slog.Any("error", err))
		leftovers = append(leftovers, "systemd unit "+unit)
	}
	if app.Certificate != nil {
		if err := e.certs.Revoke(ctx, domainName); err != nil {
			e.logger.Error("failed to revoke certificate", slog.Any("error", err))
			leftovers = append(leftovers, "certificate for "+domainName)
		}
	}
	if err := e.web.DeleteSite(ctx, domainName); err != nil {
		e.logger.Error("failed to remove site config", slog.Any("error", err))
		leftovers = append(leftovers, "site config for "+domainName)
	} else if err := e.web.Reload(ctx); err != nil {
		e.logger.Error("failed to reload webserver", slog.Any("error", err))
		leftovers = append(leftovers, "webserver reload")
	}
	if err := os.RemoveAll(e.appDir(domainName)); err != nil {
		e.logger.Error("failed to remove workspace", slog.Any("error", err))
		leftovers = append(leftovers, "build workspace "+e.appDir(domainName))
	}

	if len(leftovers) > 0 {
		app.FailedResources = leftovers
		if err := e.transition(app, domain.StateFailed); err != nil {
			e.logger.Error("failed to persist Failed state", slog.Any("error", err))
		}
		return &domain.RollbackError{
			Domain:    domainName,
			Cause:     fmt.Errorf("teardown incomplete, re-run delete once the cause is fixed"),
			Leftovers: leftovers,
		}
	}

	// All external resources confirmed gone; purge the record. A Deleted
	// record is not retained as a tombstone.
	if err := e.storeDB.Delete(domainName); err != nil {
		return err
	}
	e.logger.Info("application deleted", slog.String("domain", domainName))
	return nil
}
