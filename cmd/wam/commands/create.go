package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Perkybeet/wam/internal/core/domain"
)

func newCreateCommand() *cobra.Command {
	var (
		source       string
		branch       string
		appType      string
		port         int
		ssl          bool
		email        string
		buildCommand string
		startCommand string
		healthCheck  string
		envVars      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create <domain>",
		Short: "Deploy a new application",
		Long: `Deploy a new application: fetch its source, detect the app type, build
it, wire a reverse-proxy site into the webserver, optionally obtain a TLS
certificate, and start a supervised service. On any failure the completed
steps are rolled back in reverse order.`,
		Example: `  # Deploy a static site from a git repository
  wam create app.example.com --source user/site --type static --port 8080

  # Deploy a Next.js app with TLS
  wam create shop.example.com --source git@github.com:user/shop.git --ssl --email ops@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}

			app, err := eng.Create(cmd.Context(), domain.CreateRequest{
				Domain:          args[0],
				Source:          source,
				Branch:          branch,
				AppType:         domain.AppType(appType),
				Port:            port,
				SSL:             ssl,
				Email:           acmeEmail(email),
				BuildCommand:    buildCommand,
				StartCommand:    startCommand,
				HealthCheckPath: healthCheck,
				EnvVars:         envVars,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✔ %s deployed\n", app.Domain)
			printKeyValue("type", string(app.AppType))
			printKeyValue("port", fmt.Sprint(app.Port))
			printKeyValue("ssl", fmt.Sprint(app.SSLEnabled))
			printKeyValue("service", app.Service.UnitName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "git URL, user/repo shorthand, or local path (required)")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "git branch to deploy")
	cmd.Flags().StringVarP(&appType, "type", "t", "", "app type (nextjs, nodejs, vite, python, static, custom); detected when omitted")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "upstream port; defaults per app type")
	cmd.Flags().BoolVar(&ssl, "ssl", false, "obtain a TLS certificate for the domain")
	cmd.Flags().StringVar(&email, "email", "", "ACME account email (defaults to WAM_ACME_EMAIL)")
	cmd.Flags().StringVar(&buildCommand, "build-command", "", "override the build command")
	cmd.Flags().StringVar(&startCommand, "start-command", "", "override the start command")
	cmd.Flags().StringVar(&healthCheck, "health-check", "", "override the health check path")
	cmd.Flags().StringToStringVarP(&envVars, "env", "e", nil, "environment variables (KEY=value, repeatable)")
	cmd.MarkFlagRequired("source")

	return cmd
}
