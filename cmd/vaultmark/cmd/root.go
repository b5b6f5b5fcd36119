package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/custody"
	"github.com/vaultmark/vaultmark/engine"
	"github.com/vaultmark/vaultmark/revocation"
	"github.com/vaultmark/vaultmark/store"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "vaultmark",
	Short: "VaultMark is a credential lifecycle and trust custody engine",
	Long: `Issue short-lived SSH certificates and passwords from an encrypted
certificate authority, with full audit trail and revocation support.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"Directory for persistent state (default ~/.vaultmark)")
}

func resolvePaths() (config.Paths, error) {
	if dataDir != "" {
		return config.Paths{Root: dataDir}, nil
	}
	return config.DefaultPaths()
}

// openEngine assembles the engine over the persistent state directory. The
// returned closer releases the store's file lock.
func openEngine() (*engine.Engine, func(), error) {
	paths, err := resolvePaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(paths.Config())
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(paths.DB())
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	e := engine.New(
		s,
		custody.New(paths),
		revocation.NewRevoker(paths.KRL(), logger),
		cfg,
		paths,
		engine.WithLogger(logger),
	)
	return e, func() { s.Close() }, nil
}

// readPassphrase prompts on the terminal without echo. The VAULTMARK_PASSPHRASE
// environment variable bypasses the prompt for scripted use.
func readPassphrase(prompt string) (string, error) {
	if pass := os.Getenv("VAULTMARK_PASSPHRASE"); pass != "" {
		return pass, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	pass := strings.TrimSpace(string(raw))
	if pass == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return pass, nil
}
