package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show CA and credential summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		report, err := e.Status(cmd.Context())
		if err != nil {
			return err
		}

		if !report.Initialized {
			fmt.Println("CA: not initialized (run `vaultmark init`)")
			return nil
		}

		fmt.Println("CA: initialized")
		fmt.Printf("CA public key:\n  %s\n\n", report.CAPublicKey)
		fmt.Printf("Credentials: %d active, %d expired, %d revoked\n",
			report.Counts[store.StatusActive],
			report.Counts[store.StatusExpired],
			report.Counts[store.StatusRevoked])
		fmt.Printf("Revoked serials on file: %d\n", report.RevokedSerials)
		fmt.Printf("Last serial issued: %d\n", report.LastSerial)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
