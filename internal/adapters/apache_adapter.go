package adapters

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// ApacheAdapter implements domain.WebServerManager against a local apache2
// install, using a2ensite/a2dissite for the enable/disable mechanics.
type ApacheAdapter struct {
	sitesDir string
	runner   CommandRunner
	logger   *slog.Logger
	tmpl     *template.Template
}

// NewApacheAdapter builds the adapter.
func NewApacheAdapter(sitesDir string, runner CommandRunner, logger *slog.Logger) (*ApacheAdapter, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/apache-site.conf.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse apache site template: %w", err)
	}
	return &ApacheAdapter{sitesDir: sitesDir, runner: runner, logger: logger, tmpl: tmpl}, nil
}

func (a *ApacheAdapter) Kind() domain.WebServer { return domain.WebServerApache }

func (a *ApacheAdapter) siteName(domainName string) string {
	return domainName + ".conf"
}

func (a *ApacheAdapter) CreateSite(ctx context.Context, cfg domain.SiteConfig) (string, error) {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render site config for %s: %w", cfg.Domain, err)
	}
	path := filepath.Join(a.sitesDir, a.siteName(cfg.Domain))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write site config %s: %w", path, err)
	}
	a.logger.Debug("apache site config written", slog.String("domain", cfg.Domain), slog.String("path", path))
	return path, nil
}

func (a *ApacheAdapter) EnableSite(ctx context.Context, domainName string) error {
	if _, err := a.runner.Run(ctx, "", nil, "a2ensite", a.siteName(domainName)); err != nil {
		return fmt.Errorf("failed to enable site %s: %w", domainName, err)
	}
	return nil
}

func (a *ApacheAdapter) DisableSite(ctx context.Context, domainName string) error {
	out, err := a.runner.Run(ctx, "", nil, "a2dissite", a.siteName(domainName))
	if err != nil {
		// Disabling an already-disabled or missing site is a success for
		// the idempotent-delete contract.
		if strings.Contains(out, "does not exist") || strings.Contains(out, "already disabled") {
			return nil
		}
		return fmt.Errorf("failed to disable site %s: %w", domainName, err)
	}
	return nil
}

func (a *ApacheAdapter) DeleteSite(ctx context.Context, domainName string) error {
	if err := a.DisableSite(ctx, domainName); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(a.sitesDir, a.siteName(domainName)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete site %s: %w", domainName, err)
	}
	return nil
}

func (a *ApacheAdapter) Reload(ctx context.Context) error {
	if _, err := a.runner.Run(ctx, "", nil, "apachectl", "configtest"); err != nil {
		return fmt.Errorf("apache config test failed: %w", err)
	}
	if _, err := a.runner.Run(ctx, "", nil, "systemctl", "reload", "apache2"); err != nil {
		return fmt.Errorf("apache reload failed: %w", err)
	}
	return nil
}
