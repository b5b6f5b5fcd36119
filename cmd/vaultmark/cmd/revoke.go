package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke a credential",
	Long: `Mark a credential revoked, add its serial to the revocation artifact, and
destroy any private key material on disk. Revocation is permanent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		cred, err := e.Revoke(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Revoked %s (%s", cred.ID, cred.Kind)
		if cred.Serial != 0 {
			fmt.Printf(", serial %d", cred.Serial)
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}
