package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/engine"
)

var (
	grantTTL          string
	grantForceCommand string
	grantIdentity     string
)

var grantCmd = &cobra.Command{
	Use:   "grant <user>@<host>",
	Short: "Issue a short-lived SSH certificate",
	Long: `Generate a fresh keypair, sign it with the CA for the given principal, and
print the ssh command that uses it. The certificate expires after the TTL
and the key material is destroyed on revocation or expiry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, host, ok := strings.Cut(args[0], "@")
		if !ok || principal == "" || host == "" {
			return fmt.Errorf("target must be <user>@<host>, got %q", args[0])
		}

		var ttl time.Duration
		if grantTTL != "" {
			parsed, err := config.ParseTTL(grantTTL)
			if err != nil {
				return err
			}
			ttl = parsed.Duration()
		}

		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		pass, err := readPassphrase("CA passphrase: ")
		if err != nil {
			return err
		}

		cred, sshCmd, err := e.IssueCertificate(cmd.Context(), pass, engine.CertificateRequest{
			Principal:    principal,
			Host:         host,
			TTL:          ttl,
			ForceCommand: grantForceCommand,
			Identity:     grantIdentity,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Granted %s@%s\n", cred.Principal, cred.Host)
		fmt.Printf("  ID:      %s\n", cred.ID)
		fmt.Printf("  Serial:  %d\n", cred.Serial)
		fmt.Printf("  Expires: %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
		if cred.ForceCommand != "" {
			fmt.Printf("  Command: %s\n", cred.ForceCommand)
		}
		fmt.Printf("\nConnect with:\n  %s\n", sshCmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(grantCmd)
	grantCmd.Flags().StringVarP(&grantTTL, "ttl", "t", "", "Certificate lifetime, e.g. 30s, 5m, 1h, 1d (default from config)")
	grantCmd.Flags().StringVar(&grantForceCommand, "force-command", "", "Restrict the certificate to one command")
	grantCmd.Flags().StringVar(&grantIdentity, "identity", "", "Certificate key ID (default vaultmark-<id>)")
}
