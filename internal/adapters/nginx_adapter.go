package adapters

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Perkybeet/wam/internal/core/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// NginxAdapter implements domain.WebServerManager against a local nginx
// using the Debian sites-available/sites-enabled convention.
type NginxAdapter struct {
	sitesDir   string
	enabledDir string
	runner     CommandRunner
	logger     *slog.Logger
	tmpl       *template.Template
}

// NewNginxAdapter builds the adapter; template parsing happens once here.
func NewNginxAdapter(sitesDir, enabledDir string, runner CommandRunner, logger *slog.Logger) (*NginxAdapter, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/nginx-site.conf.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse nginx site template: %w", err)
	}
	return &NginxAdapter{
		sitesDir:   sitesDir,
		enabledDir: enabledDir,
		runner:     runner,
		logger:     logger,
		tmpl:       tmpl,
	}, nil
}

func (a *NginxAdapter) Kind() domain.WebServer { return domain.WebServerNginx }

func (a *NginxAdapter) configPath(domainName string) string {
	return filepath.Join(a.sitesDir, domainName+".conf")
}

func (a *NginxAdapter) enabledPath(domainName string) string {
	return filepath.Join(a.enabledDir, domainName+".conf")
}

// CreateSite renders and installs the vhost config. Re-rendering an existing
// site (the SSL pass) overwrites in place.
func (a *NginxAdapter) CreateSite(ctx context.Context, cfg domain.SiteConfig) (string, error) {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render site config for %s: %w", cfg.Domain, err)
	}
	path := a.configPath(cfg.Domain)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write site config %s: %w", path, err)
	}
	a.logger.Debug("nginx site config written", slog.String("domain", cfg.Domain), slog.String("path", path))
	return path, nil
}

// EnableSite links the config into sites-enabled. Already enabled is fine.
func (a *NginxAdapter) EnableSite(ctx context.Context, domainName string) error {
	err := os.Symlink(a.configPath(domainName), a.enabledPath(domainName))
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to enable site %s: %w", domainName, err)
	}
	return nil
}

// DisableSite removes the sites-enabled link. Absent is a success.
func (a *NginxAdapter) DisableSite(ctx context.Context, domainName string) error {
	err := os.Remove(a.enabledPath(domainName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to disable site %s: %w", domainName, err)
	}
	return nil
}

// DeleteSite removes the sites-available config. Absent is a success.
func (a *NginxAdapter) DeleteSite(ctx context.Context, domainName string) error {
	if err := a.DisableSite(ctx, domainName); err != nil {
		return err
	}
	err := os.Remove(a.configPath(domainName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete site %s: %w", domainName, err)
	}
	return nil
}

// Reload validates the full config first so a broken vhost never takes the
// webserver down with it.
func (a *NginxAdapter) Reload(ctx context.Context) error {
	if _, err := a.runner.Run(ctx, "", nil, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config test failed: %w", err)
	}
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("nginx reload failed: %w", err)
	}
	return nil
}
