// Package commands implements the wam CLI surface. Command handlers only
// translate flags into engine calls; all orchestration lives in the engine.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Perkybeet/wam/internal/adapters"
	"github.com/Perkybeet/wam/internal/config"
	"github.com/Perkybeet/wam/internal/core/deployers"
	"github.com/Perkybeet/wam/internal/core/domain"
	"github.com/Perkybeet/wam/internal/core/engine"
	"github.com/Perkybeet/wam/internal/store"
)

var verbose bool

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	rootCmd := newRootCommand(version)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wam",
		Short: "wam - web application manager",
		Long: `wam provisions, updates, and tears down web applications on a single
Linux host: it fetches application source, builds it, wires a reverse-proxy
entry into the webserver, obtains a TLS certificate, and supervises the
running process with systemd.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newRestartCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newSetupCommand())

	return rootCmd
}

// newLogger builds the process logger; --verbose switches to debug level.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine assembles the orchestration engine and its collaborators from
// tool configuration. Each CLI invocation is a fresh process; everything the
// engine knows comes from the state store.
func newEngine(logger *slog.Logger) (*engine.Engine, error) {
	cfg := config.Load()

	stateStore, err := store.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	locks, err := store.NewLockManager(cfg.LockDir)
	if err != nil {
		return nil, err
	}

	runner := adapters.NewExecRunner(cfg.CommandTimeout)
	builder := adapters.NewExecRunner(cfg.BuildTimeout)

	var web domain.WebServerManager
	switch cfg.WebServer {
	case "apache":
		web, err = adapters.NewApacheAdapter(cfg.ApacheSitesDir, runner, logger)
	default:
		web, err = adapters.NewNginxAdapter(cfg.NginxSitesDir, cfg.NginxEnabledDir, runner, logger)
	}
	if err != nil {
		return nil, err
	}

	services, err := adapters.NewSystemdAdapter(cfg.SystemdUnitDir, runner, logger)
	if err != nil {
		return nil, err
	}
	certs := adapters.NewAcmeProvider(cfg.AcmeDirectoryURL, cfg.TLSDir, "/var/www/html", logger)
	fetcher := adapters.NewGitFetcher(logger)
	prober := adapters.NewHTTPProber(cfg.HealthCheckRetries, logger)

	return engine.New(
		cfg, stateStore, locks, deployers.NewDefaultRegistry(),
		web, certs, services, fetcher, prober, builder, logger,
	), nil
}

// acmeEmail resolves the certificate account email: flag first, then tool
// configuration.
func acmeEmail(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.Load().AcmeEmail
}

func printKeyValue(key, value string) {
	fmt.Printf("  %-18s %s\n", key+":", value)
}
