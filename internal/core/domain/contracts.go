package domain

import (
	"context"
	"time"
)

// ApplicationStore is the durable record of every managed application.
// Put must replace atomically with respect to process crashes: after an
// interruption a record is either fully written or fully absent.
type ApplicationStore interface {
	Get(domain string) (*Application, error)
	// List returns a point-in-time snapshot. It never blocks on held locks;
	// a locked record may show a non-terminal state, which callers treat as
	// "operation in progress".
	List() ([]*Application, error)
	Put(app *Application) error
	Delete(domain string) error
}

// SiteConfig carries everything the webserver adapter needs to render a
// vhost entry for one application.
type SiteConfig struct {
	Domain   string
	Port     int
	AppType  AppType
	SSL      bool
	CertPath string
	KeyPath  string
}

// WebServerManager wraps the host webserver (nginx or apache). The concrete
// reload/enable mechanics are opaque to the engine.
type WebServerManager interface {
	CreateSite(ctx context.Context, cfg SiteConfig) (configPath string, err error)
	EnableSite(ctx context.Context, domain string) error
	DisableSite(ctx context.Context, domain string) error
	DeleteSite(ctx context.Context, domain string) error
	Reload(ctx context.Context) error
	Kind() WebServer
}

// CertificateInfo is returned by a successful issuance.
type CertificateInfo struct {
	Domain    string
	Provider  string
	CertPath  string
	KeyPath   string
	ExpiresAt time.Time
}

// CertificateManager obtains and removes TLS certificates for a domain.
type CertificateManager interface {
	Issue(ctx context.Context, domain, email string) (*CertificateInfo, error)
	Revoke(ctx context.Context, domain string) error
	Renew(ctx context.Context, domain string) error
}

// ServiceManager wraps the process supervisor (systemd).
type ServiceManager interface {
	Create(ctx context.Context, unit ServiceUnit) error
	Start(ctx context.Context, unitName string) error
	Stop(ctx context.Context, unitName string) error
	Restart(ctx context.Context, unitName string) error
	Status(ctx context.Context, unitName string) (ServiceStatus, error)
	Delete(ctx context.Context, unitName string) error
	Logs(ctx context.Context, unitName string, lines int) (string, error)
}

// ServiceUnit describes the supervised process to create.
type ServiceUnit struct {
	Name       string
	Command    string
	WorkingDir string
	User       string
	Port       int
	EnvVars    map[string]string
}

// ServiceStatus is the supervisor's view of a unit.
type ServiceStatus struct {
	Exists  bool
	Enabled bool
	Running bool
}

// SourceFetcher materializes an application's source into a destination
// directory, cloning or copying as the descriptor demands.
type SourceFetcher interface {
	Fetch(ctx context.Context, src Source, dest string) error
}

// HealthProber checks whether the freshly started application answers on its
// port. Implementations bound their own retries; a false return after the
// retry budget is a stage failure.
type HealthProber interface {
	Probe(ctx context.Context, port int, path string, timeout time.Duration) error
}
