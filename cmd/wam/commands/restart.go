package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <domain>",
		Short: "Restart an application's service and re-check its health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}
			if err := eng.Restart(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✔ %s restarted\n", args[0])
			return nil
		},
	}
	return cmd
}
