package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// StaleLockAge is how old a lock may grow before it is reported as stale even
// when the owning pid cannot be checked. Pipelines are minutes, not hours.
const StaleLockAge = time.Hour

// lockInfo is what a holder records inside its lock file, for staleness
// diagnosis by later invocations.
type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Operation  string    `json:"operation"`
}

// DomainLock is an exclusive, host-durable advisory lock on one domain, held
// for the lifetime of a pipeline. Concurrency here is cross-process, so the
// lock is a file created with O_EXCL rather than an in-process mutex.
type DomainLock struct {
	path string
}

// LockManager hands out per-domain locks under a fixed directory.
type LockManager struct {
	dir string
}

// NewLockManager ensures the lock directory exists.
func NewLockManager(dir string) (*LockManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}
	return &LockManager{dir: dir}, nil
}

func (m *LockManager) lockPath(domainName string) string {
	return filepath.Join(m.dir, domainName+".lock")
}

// Acquire takes the lock for a domain or fails fast with a ConflictError.
// It never queues: the tool prevents concurrent corruption, it does not
// serialize work. A lock left behind by a killed process is reported as
// stale with recovery guidance; it is never cleared automatically.
func (m *LockManager) Acquire(domainName, operation string) (*DomainLock, error) {
	path := m.lockPath(domainName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC(), Operation: operation}
		enc := json.NewEncoder(f)
		if werr := enc.Encode(info); werr != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("failed to write lock file for %s: %w", domainName, werr)
		}
		if cerr := f.Close(); cerr != nil {
			os.Remove(path)
			return nil, fmt.Errorf("failed to close lock file for %s: %w", domainName, cerr)
		}
		return &DomainLock{path: path}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", domainName, err)
	}

	holder, readErr := readLockInfo(path)
	if readErr != nil {
		return nil, &domain.ConflictError{
			Domain: domainName,
			Reason: "another operation holds the lock (holder unreadable); if no wam process is running, remove the lock file and run `wam delete` to recover",
		}
	}
	if isStale(holder) {
		return nil, &domain.ConflictError{
			Domain: domainName,
			Reason: fmt.Sprintf(
				"stale lock held by pid %d since %s (%s); the process appears dead — remove %s and run `wam status`/`wam delete` to recover",
				holder.PID, holder.AcquiredAt.Format(time.RFC3339), holder.Operation, path),
		}
	}
	return nil, &domain.ConflictError{
		Domain: domainName,
		Reason: fmt.Sprintf("a %s operation is already in progress (pid %d, started %s)",
			holder.Operation, holder.PID, holder.AcquiredAt.Format(time.RFC3339)),
	}
}

// Release drops the lock. Safe to call once the pipeline reached a terminal
// state.
func (l *DomainLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func readLockInfo(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	return info, nil
}

// isStale reports whether a lock's holder is provably gone (pid dead on this
// host) or the lock is older than the staleness horizon.
func isStale(info lockInfo) bool {
	if time.Since(info.AcquiredAt) > StaleLockAge {
		return true
	}
	if info.PID <= 0 {
		return true
	}
	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return true
	}
	// Signal 0 probes liveness without touching the process.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
	}
	return false
}
