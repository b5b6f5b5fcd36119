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
	passwordTTL     string
	passwordLength  int
	passwordCharset string
)

var passwordCmd = &cobra.Command{
	Use:   "password <label>",
	Short: "Issue a random password",
	Long: `Generate a random password and record its SHA-256 hash. The plaintext is
printed exactly once and never stored; only the hash can be compared later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ttl time.Duration
		if passwordTTL != "" {
			parsed, err := config.ParseTTL(passwordTTL)
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

		cred, plaintext, err := e.IssuePassword(cmd.Context(), engine.PasswordRequest{
			Label:   args[0],
			TTL:     ttl,
			Length:  passwordLength,
			Charset: passwordCharset,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Password for %q (ID %s, expires %s):\n\n  %s\n\n",
			cred.Label, cred.ID, cred.ExpiresAt.Local().Format(time.RFC1123), plaintext)
		fmt.Println("Shown once. Only the hash is stored.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.Flags().StringVarP(&passwordTTL, "ttl", "t", "", "Password lifetime, e.g. 1h, 1d (default from config)")
	passwordCmd.Flags().IntVarP(&passwordLength, "length", "l", 0, "Password length (default from config)")
	passwordCmd.Flags().StringVarP(&passwordCharset, "charset", "c", "",
		"Character set: "+strings.Join(engine.Charsets(), ", "))
}
