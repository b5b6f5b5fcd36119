package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// Keypair is an ephemeral subject keypair written to a grant directory. The
// private key exists only under that directory and is destroyed with it when
// the credential leaves Active.
type Keypair struct {
	KeyPath    string
	PubKeyPath string
	PublicKey  ssh.PublicKey
}

// GenerateKeypair creates a fresh ed25519 keypair under dir, writing the
// private key 0600 and the public key 0644, both in OpenSSH formats.
func GenerateKeypair(dir string) (*Keypair, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating grant dir: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}

	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("converting public key: %w", err)
	}
	pubKeyPath := keyPath + ".pub"
	if err := os.WriteFile(pubKeyPath, ssh.MarshalAuthorizedKey(sshPub), 0o644); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	return &Keypair{
		KeyPath:    keyPath,
		PubKeyPath: pubKeyPath,
		PublicKey:  sshPub,
	}, nil
}
