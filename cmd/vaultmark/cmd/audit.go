package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/store"
)

var (
	auditLimit  int
	auditAction string
	auditID     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail",
	Long:  `Print audit entries, newest first. The trail is append-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		entries, err := e.AuditLog(cmd.Context(), store.AuditFilter{
			Limit:        auditLimit,
			Action:       store.Action(auditAction),
			CredentialID: auditID,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tACTION\tCREDENTIAL\tDETAILS")
		for _, entry := range entries {
			id := entry.CredentialID
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				entry.Sequence,
				entry.Timestamp.Local().Format(time.RFC3339),
				entry.Action, id, entry.Details)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action (init, grant, password, revoke, cleanup, setup-host)")
	auditCmd.Flags().StringVar(&auditID, "id", "", "Filter by credential ID")
}
