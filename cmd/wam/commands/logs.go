package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCommand() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <domain>",
		Short: "Show recent service logs for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}
			out, err := eng.Logs(cmd.Context(), args[0], lines)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "number of journal lines to show")
	return cmd
}
