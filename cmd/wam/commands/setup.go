package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Perkybeet/wam/internal/config"
)

func newSetupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Host setup helpers",
	}
	cmd.AddCommand(newSetupInitCommand())
	return cmd
}

func newSetupInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the directories wam needs on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			dirs := []string{cfg.AppsDir, cfg.StateDir, cfg.LockDir, cfg.TLSDir}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
				fmt.Printf("✔ %s\n", dir)
			}
			return nil
		},
	}
}
