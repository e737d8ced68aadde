package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Perkybeet/wam/internal/core/domain"
)

func newUpdateCommand() *cobra.Command {
	var (
		source       string
		branch       string
		buildCommand string
		startCommand string
	)

	cmd := &cobra.Command{
		Use:   "update <domain>",
		Short: "Re-deploy an application from fresh source",
		Long: `Fetch and build the application again, keeping the webserver and
certificate untouched. The running release is snapshotted first; if the new
build fails its health check, the snapshot is restored and the application
stays on the previous release.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}

			app, err := eng.Update(cmd.Context(), domain.UpdateRequest{
				Domain:       args[0],
				Source:       source,
				Branch:       branch,
				BuildCommand: buildCommand,
				StartCommand: startCommand,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✔ %s updated\n", app.Domain)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "switch to a new source (git URL, user/repo, local path)")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "switch to a new git branch")
	cmd.Flags().StringVar(&buildCommand, "build-command", "", "override the build command")
	cmd.Flags().StringVar(&startCommand, "start-command", "", "override the start command (recreates the service unit)")

	return cmd
}
