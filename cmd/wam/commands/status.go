package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Perkybeet/wam/internal/core/domain"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <domain>",
		Short: "Show an application's record reconciled against the host",
		Long: `Show the persisted record for a domain and compare it with what is
actually on the host: site config, systemd unit, certificate material.
Disagreements are reported as corruption and never repaired automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}

			report, err := eng.Status(cmd.Context(), args[0])
			var corrupt *domain.CorruptStateError
			if err != nil && !errors.As(err, &corrupt) {
				return err
			}

			app := report.App
			fmt.Printf("%s\n", app.Domain)
			printKeyValue("state", string(app.State))
			printKeyValue("type", string(app.AppType))
			printKeyValue("source", app.Source.String())
			printKeyValue("port", fmt.Sprint(app.Port))
			printKeyValue("ssl", fmt.Sprint(app.SSLEnabled))
			if app.Site != nil {
				printKeyValue("site", app.Site.ConfigPath)
			}
			if app.Service != nil {
				printKeyValue("service", fmt.Sprintf("%s (running: %v)", app.Service.UnitName, report.Service.Running))
			}
			if app.Certificate != nil {
				printKeyValue("cert expires", app.Certificate.ExpiresAt.Format(time.RFC3339))
			}
			if len(app.FailedResources) > 0 {
				fmt.Println("unremoved resources:")
				for _, r := range app.FailedResources {
					fmt.Printf("  - %s\n", r)
				}
			}
			if corrupt != nil {
				fmt.Println("state mismatches detected:")
				for _, m := range report.Mismatches {
					fmt.Printf("  ! %s\n", m)
				}
				return corrupt
			}
			return nil
		},
	}
	return cmd
}
