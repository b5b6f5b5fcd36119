package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths describes the on-disk layout rooted at a single VaultMark directory
// (default ~/.vaultmark). All components derive their file locations from it
// so tests can point the whole system at a temp dir.
type Paths struct {
	Root string
}

// DefaultPaths roots the layout in the user's home directory.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolving home dir: %w", err)
	}
	return Paths{Root: filepath.Join(home, ".vaultmark")}, nil
}

func (p Paths) Config() string { return filepath.Join(p.Root, "config.yml") }
func (p Paths) CADir() string  { return filepath.Join(p.Root, "ca") }
func (p Paths) CAKey() string  { return filepath.Join(p.CADir(), "ca_key.enc") }
func (p Paths) CAPub() string  { return filepath.Join(p.CADir(), "ca_key.pub") }
func (p Paths) DB() string     { return filepath.Join(p.Root, "credentials.db") }
func (p Paths) KRL() string    { return filepath.Join(p.Root, "krl") }
func (p Paths) Grants() string { return filepath.Join(p.Root, "grants") }

// GrantDir is the secret-material area for one credential. It holds the
// ephemeral keypair and signed certificate, and is removed recursively when
// the credential leaves Active.
func (p Paths) GrantDir(id string) string {
	return filepath.Join(p.Grants(), id)
}

// EnsureDirs creates the root, CA, and grants directories with owner-only
// permissions.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.CADir(), p.Grants()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
