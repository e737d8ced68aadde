package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List managed applications",
		Long: `List every managed application with its state. A non-terminal state
(pending, provisioning, updating, deleting) means another invocation is
working on that domain right now.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := newEngine(logger)
			if err != nil {
				return err
			}
			apps, err := eng.List()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(apps)
			}

			if len(apps) == 0 {
				fmt.Println("no applications deployed")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tTYPE\tPORT\tSSL\tSTATE")
			for _, app := range apps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\n",
					app.Domain, app.AppType, app.Port, app.SSLEnabled, app.State)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
