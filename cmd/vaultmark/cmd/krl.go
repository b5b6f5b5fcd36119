package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var krlCmd = &cobra.Command{
	Use:   "krl",
	Short: "Revocation artifact tools",
}

var krlCheckCmd = &cobra.Command{
	Use:   "check <serial>",
	Short: "Check whether a certificate serial is revoked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("serial must be a positive integer: %w", err)
		}

		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		revoked, err := e.IsRevoked(cmd.Context(), serial)
		if err != nil {
			return err
		}
		if revoked {
			fmt.Printf("Serial %d is revoked.\n", serial)
		} else {
			fmt.Printf("Serial %d is not revoked.\n", serial)
		}
		return nil
	},
}

var krlRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate the revocation artifact from the credential store",
	Long: `Rewrite the revocation artifact from the store's revoked credentials. Use
after artifact corruption to recover serials the corruption fallback dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		n, err := e.RebuildRevocations(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt revocation artifact with %d serial(s).\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(krlCmd)
	krlCmd.AddCommand(krlCheckCmd)
	krlCmd.AddCommand(krlRebuildCmd)
}
