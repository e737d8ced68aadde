// Package config loads tool-level configuration from the environment and the
// optional per-project wam.yml.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all dynamic configuration for the wam CLI. Values come from
// the environment (optionally seeded from /etc/wam/wam.env or a local .env)
// with sensible fallbacks for a stock Debian-ish host.
type Config struct {
	// Filesystem layout.
	AppsDir  string // build workspaces, one subdirectory per domain
	StateDir string // application records (JSON, one per domain)
	LockDir  string // per-domain lock files
	TLSDir   string // installed certificates and keys

	// Host integration.
	WebServer        string // "nginx" or "apache"
	NginxSitesDir    string
	NginxEnabledDir  string
	ApacheSitesDir   string
	SystemdUnitDir   string
	ServiceUser      string // user application units run as
	AcmeDirectoryURL string
	AcmeEmail        string // default account email, overridable per create

	// Budgets. Every external call gets a finite timeout; a timeout is a
	// stage failure like any other.
	CommandTimeout     time.Duration
	BuildTimeout       time.Duration
	HealthCheckTimeout time.Duration
	HealthCheckRetries int
}

// Load parses the environment and applies fallbacks. A missing .env is not an
// error; explicit environment variables always win over file contents.
func Load() *Config {
	_ = godotenv.Load("/etc/wam/wam.env")

	return &Config{
		AppsDir:  getEnv("WAM_APPS_DIR", "/var/www/apps"),
		StateDir: getEnv("WAM_STATE_DIR", "/var/lib/wam/apps"),
		LockDir:  getEnv("WAM_LOCK_DIR", "/var/lib/wam/locks"),
		TLSDir:   getEnv("WAM_TLS_DIR", "/etc/wam/tls"),

		WebServer:        getEnv("WAM_WEBSERVER", "nginx"),
		NginxSitesDir:    getEnv("WAM_NGINX_SITES_DIR", "/etc/nginx/sites-available"),
		NginxEnabledDir:  getEnv("WAM_NGINX_ENABLED_DIR", "/etc/nginx/sites-enabled"),
		ApacheSitesDir:   getEnv("WAM_APACHE_SITES_DIR", "/etc/apache2/sites-available"),
		SystemdUnitDir:   getEnv("WAM_SYSTEMD_UNIT_DIR", "/etc/systemd/system"),
		ServiceUser:      getEnv("WAM_SERVICE_USER", "www-data"),
		AcmeDirectoryURL: getEnv("WAM_ACME_URL", "https://acme-v02.api.letsencrypt.org/directory"),
		AcmeEmail:        getEnv("WAM_ACME_EMAIL", ""),

		CommandTimeout:     getDurationEnv("WAM_COMMAND_TIMEOUT", 2*time.Minute),
		BuildTimeout:       getDurationEnv("WAM_BUILD_TIMEOUT", 15*time.Minute),
		HealthCheckTimeout: getDurationEnv("WAM_HEALTH_TIMEOUT", 5*time.Second),
		HealthCheckRetries: getIntEnv("WAM_HEALTH_RETRIES", 5),
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
