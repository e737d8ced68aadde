package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <domain>",
		Short: "Tear an application down and purge its record",
		Long: `Stop and remove the service, revoke the certificate, remove the site
config, and delete the build workspace. Removing an already-absent resource
is a success, so delete can be re-run against a partially torn-down
application until everything is gone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}
			if err := eng.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✔ %s deleted\n", args[0])
			return nil
		},
	}
	return cmd
}
