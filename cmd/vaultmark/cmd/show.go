package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/store"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one credential in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		cred, err := e.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %s\n", cred.ID)
		fmt.Printf("Kind:     %s\n", cred.Kind)
		fmt.Printf("Status:   %s\n", cred.Status)
		if cred.Kind == store.KindCertificate {
			fmt.Printf("Target:   %s@%s\n", cred.Principal, cred.Host)
			fmt.Printf("Serial:   %d\n", cred.Serial)
			if cred.ForceCommand != "" {
				fmt.Printf("Command:  %s\n", cred.ForceCommand)
			}
		} else {
			fmt.Printf("Label:    %s\n", cred.Label)
		}
		fmt.Printf("Created:  %s\n", cred.CreatedAt.Local().Format(time.RFC1123))
		fmt.Printf("Expires:  %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
		if cred.RevokedAt != nil {
			fmt.Printf("Revoked:  %s\n", cred.RevokedAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
