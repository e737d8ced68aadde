// Package store persists application records as one JSON file per domain and
// provides the cross-process per-domain locks that serialize pipelines.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// ErrNotFound is returned when no record exists for a domain.
var ErrNotFound = errors.New("application not found")

// FileStore implements domain.ApplicationStore on a directory of JSON files.
// Writes go to a temp file in the same directory and land via rename, so a
// crash mid-write leaves either the old record or the new one, never a torn
// file.
type FileStore struct {
	dir string
}

// NewFileStore ensures dir exists and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) recordPath(domainName string) string {
	return filepath.Join(s.dir, domainName+".json")
}

// Get loads the record for a domain.
func (s *FileStore) Get(domainName string) (*domain.Application, error) {
	data, err := os.ReadFile(s.recordPath(domainName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record for %s: %w", domainName, err)
	}
	var app domain.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, &domain.CorruptStateError{
			Domain:  domainName,
			Details: []string{fmt.Sprintf("record file is not valid JSON: %v", err)},
		}
	}
	return &app, nil
}

// List returns a snapshot of every record, sorted by domain. It reads record
// files only and never consults lock files, so an in-flight pipeline on some
// domain does not block listing.
func (s *FileStore) List() ([]*domain.Application, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}
	var apps []*domain.Application
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp.json") {
			continue
		}
		app, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // deleted between ReadDir and Get
			}
			return nil, err
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Domain < apps[j].Domain })
	return apps, nil
}

// Put atomically replaces the record for app.Domain.
func (s *FileStore) Put(app *domain.Application) error {
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", app.Domain, err)
	}
	tmp, err := os.CreateTemp(s.dir, app.Domain+".*.tmp.json")
	if err != nil {
		return fmt.Errorf("failed to create temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename lands

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp record: %w", err)
	}
	if err := os.Rename(tmpName, s.recordPath(app.Domain)); err != nil {
		return fmt.Errorf("failed to commit record for %s: %w", app.Domain, err)
	}
	return nil
}

// Delete removes the record for a domain. Removing an absent record is a
// success, matching the idempotent-delete contract.
func (s *FileStore) Delete(domainName string) error {
	err := os.Remove(s.recordPath(domainName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete record for %s: %w", domainName, err)
	}
	return nil
}
