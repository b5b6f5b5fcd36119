package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/custody"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the certificate authority",
	Long: `Generate the CA signing key, encrypt it under a passphrase, and write the
default configuration. With --force the CA key is rotated, which invalidates
every certificate issued under the previous key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		if err := paths.EnsureDirs(); err != nil {
			return err
		}

		// Write the default config on first init so later runs pick it up.
		if _, err := os.Stat(paths.Config()); os.IsNotExist(err) {
			if err := config.Save(paths.Config(), config.DefaultConfig()); err != nil {
				return err
			}
		}

		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		pass, err := readPassphrase("Choose a CA passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		pub, err := e.InitCA(cmd.Context(), pass, initForce)
		if err != nil {
			if errors.Is(err, custody.ErrAlreadyInitialized) {
				return fmt.Errorf("CA already initialized at %s (use --force to rotate)", paths.Root)
			}
			return err
		}

		printBanner()
		fmt.Printf("CA initialized at %s\n\nCA public key:\n%s\n", paths.Root, pub)
		if initForce {
			fmt.Println("\nWARNING: all previously issued certificates are now invalid.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Rotate the CA key if one already exists")
}
