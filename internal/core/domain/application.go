package domain

import (
	"time"

	"github.com/google/uuid"
)

// AppType is the closed set of application kinds WAM knows how to deploy.
type AppType string

const (
	AppTypeNextJS AppType = "nextjs"
	AppTypeNodeJS AppType = "nodejs"
	AppTypeVite   AppType = "vite"
	AppTypePython AppType = "python"
	AppTypeStatic AppType = "static"
	AppTypeCustom AppType = "custom"
)

// AppTypes lists every valid AppType, in registry order.
var AppTypes = []AppType{AppTypeNextJS, AppTypeVite, AppTypeNodeJS, AppTypePython, AppTypeStatic, AppTypeCustom}

// IsValid reports whether t names a known application type.
func (t AppType) IsValid() bool {
	for _, known := range AppTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LifecycleState tracks where an application sits in its deployment lifecycle.
// Transitions are driven exclusively by the orchestration engine:
//
//	Pending -> Provisioning -> Active
//	Active  -> Updating     -> Active
//	Active|Failed -> Deleting -> Deleted
//	any -> Failed on unrecovered error
type LifecycleState string

const (
	StatePending      LifecycleState = "pending"
	StateProvisioning LifecycleState = "provisioning"
	StateActive       LifecycleState = "active"
	StateUpdating     LifecycleState = "updating"
	StateFailed       LifecycleState = "failed"
	StateDeleting     LifecycleState = "deleting"
	StateDeleted      LifecycleState = "deleted"
)

// Terminal reports whether the state ends a pipeline; locks are released only
// once a record reaches one of these.
func (s LifecycleState) Terminal() bool {
	return s == StateActive || s == StateFailed || s == StateDeleted
}

// WebServer identifies which webserver owns the site entry.
type WebServer string

const (
	WebServerNginx  WebServer = "nginx"
	WebServerApache WebServer = "apache"
)

// Application is the core deployment record, one per managed domain.
// It is the single durable source of truth that every CLI invocation
// reconstructs its view of the world from.
type Application struct {
	ID         uuid.UUID      `json:"id"`
	Domain     string         `json:"domain"`
	AppType    AppType        `json:"app_type"`
	Source     Source         `json:"source"`
	Port       int            `json:"port"`
	State      LifecycleState `json:"state"`
	SSLEnabled bool           `json:"ssl_enabled"`

	InstallCommand  string            `json:"install_command,omitempty"`
	BuildCommand    string            `json:"build_command,omitempty"`
	StartCommand    string            `json:"start_command"`
	HealthCheckPath string            `json:"health_check_path"`
	EnvVars         map[string]string `json:"env_vars,omitempty"`

	// ReleasePath is the on-disk workspace serving the current release.
	ReleasePath string `json:"release_path,omitempty"`
	// PreviousReleasePath is retained only while an update is in flight,
	// so a failed update can restore the last known-good build.
	PreviousReleasePath string `json:"previous_release_path,omitempty"`

	// Sub-resources; nil until the corresponding pipeline stage completes.
	Site        *SiteRecord        `json:"site,omitempty"`
	Service     *ServiceRecord     `json:"service,omitempty"`
	Certificate *CertificateRecord `json:"certificate,omitempty"`

	// FailedResources lists host resources a rollback or delete could not
	// remove; non-empty only when State is Failed.
	FailedResources []string `json:"failed_resources,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SiteRecord is the webserver config entry provisioned for an application.
type SiteRecord struct {
	WebServer  WebServer `json:"webserver"`
	ConfigPath string    `json:"config_path"`
	Enabled    bool      `json:"enabled"`
}

// ServiceRecord is the supervised process unit running the application.
type ServiceRecord struct {
	UnitName  string `json:"unit_name"`
	RunAsUser string `json:"run_as_user"`
	Enabled   bool   `json:"enabled"`
	Running   bool   `json:"running"`
}

// CertificateRecord describes the TLS certificate obtained for the domain.
type CertificateRecord struct {
	Domain    string    `json:"domain"`
	Provider  string    `json:"provider"`
	CertPath  string    `json:"cert_path"`
	KeyPath   string    `json:"key_path"`
	ExpiresAt time.Time `json:"expires_at"`
}
