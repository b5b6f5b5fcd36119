package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/store"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		creds, err := e.List(cmd.Context(), store.Filter{IncludeTerminal: listAll})
		if err != nil {
			return err
		}
		if len(creds) == 0 {
			fmt.Println("No credentials.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tTARGET\tSERIAL\tSTATUS\tEXPIRES")
		for _, c := range creds {
			target := c.Label
			if c.Kind == store.KindCertificate {
				target = c.Principal + "@" + c.Host
			}
			serial := "-"
			if c.Serial != 0 {
				serial = fmt.Sprintf("%d", c.Serial)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Kind, target, serial, c.Status,
				c.ExpiresAt.Local().Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include expired and revoked credentials")
}
