// Package custody provides encrypted-at-rest custody of the CA's long-term
// signing key. The private key is sealed with a passphrase-derived Argon2id
// key under AES-256-GCM; decrypted material only ever lives inside a
// memguard-backed KeyHandle that is wiped on Close.
package custody

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/ssh"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/internal/util"
)

var (
	// ErrNotInitialized indicates no CA key material exists yet.
	ErrNotInitialized = errors.New("CA not initialized")
	// ErrAlreadyInitialized indicates custody already holds CA key material.
	// Reinitializing invalidates every certificate signed by the old key, so
	// it requires the explicit WithForce acknowledgment.
	ErrAlreadyInitialized = errors.New("CA already initialized")
	// ErrAuthenticationFailed indicates the passphrase is wrong or the stored
	// key material is corrupted. The two cases are deliberately not
	// distinguishable: GCM authentication fails closed either way.
	ErrAuthenticationFailed = errors.New("invalid passphrase or corrupted CA key material")
)

const envelopeScheme = "argon2id-aes256gcm"

// envelope is the sealed on-disk representation of the CA private key.
type envelope struct {
	Ver        int                 `json:"ver"`
	Scheme     string              `json:"scheme"`
	KeyID      string              `json:"key_id"`
	Salt       []byte              `json:"salt"`
	KDF        util.Argon2idParams `json:"kdf"`
	Ciphertext []byte              `json:"ciphertext"`
}

// Custody manages the CA signing key at rest.
type Custody struct {
	paths     config.Paths
	kdfParams util.Argon2idParams
}

// Option customizes a Custody instance.
type Option func(*Custody)

// WithKDFParams overrides the Argon2id parameters used when sealing new key
// material. Existing envelopes carry their own parameters.
func WithKDFParams(params util.Argon2idParams) Option {
	return func(c *Custody) {
		c.kdfParams = params
	}
}

// New returns a Custody rooted at the given layout.
func New(paths config.Paths, opts ...Option) *Custody {
	c := &Custody{
		paths:     paths,
		kdfParams: util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialized reports whether CA key material exists.
func (c *Custody) Initialized() bool {
	_, err := os.Stat(c.paths.CAKey())
	return err == nil
}

// InitOption customizes Init.
type InitOption func(*initOptions)

type initOptions struct {
	force bool
}

// WithForce acknowledges that reinitializing destroys the existing CA key
// and invalidates every certificate whose verification depends on it.
func WithForce() InitOption {
	return func(o *initOptions) {
		o.force = true
	}
}

// Init generates a fresh ed25519 CA keypair, seals the private key under the
// passphrase, and writes the public key alongside it. It returns the CA
// public key in authorized_keys format.
func (c *Custody) Init(passphrase, keyID string, opts ...InitOption) (string, error) {
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	if c.Initialized() && !o.force {
		return "", ErrAlreadyInitialized
	}
	if err := c.paths.EnsureDirs(); err != nil {
		return "", err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating CA keypair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, keyID)
	if err != nil {
		return "", fmt.Errorf("marshaling CA private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(block)
	defer util.WipeBytes(keyPEM)

	salt, err := util.RandomBytes(16)
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	derived, err := util.DeriveArgon2idKey(passphrase, salt, c.kdfParams)
	if err != nil {
		return "", fmt.Errorf("deriving sealing key: %w", err)
	}
	defer util.WipeBytes(derived)

	ciphertext, err := util.EncryptAES(keyPEM, derived, []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("sealing CA private key: %w", err)
	}

	env := envelope{
		Ver:        1,
		Scheme:     envelopeScheme,
		KeyID:      keyID,
		Salt:       salt,
		KDF:        c.kdfParams,
		Ciphertext: ciphertext,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshaling envelope: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("converting CA public key: %w", err)
	}
	pubLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + keyID + "\n"

	if err := os.WriteFile(c.paths.CAKey(), data, 0o600); err != nil {
		return "", fmt.Errorf("writing sealed CA key: %w", err)
	}
	if err := os.WriteFile(c.paths.CAPub(), []byte(pubLine), 0o644); err != nil {
		return "", fmt.Errorf("writing CA public key: %w", err)
	}

	return strings.TrimSpace(pubLine), nil
}

// Unlock decrypts the CA private key with the given passphrase and returns a
// KeyHandle owning the decrypted material. The caller must Close the handle
// on every exit path.
func (c *Custody) Unlock(passphrase string) (*KeyHandle, error) {
	data, err := os.ReadFile(c.paths.CAKey())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("reading sealed CA key: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if env.Scheme != envelopeScheme {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrAuthenticationFailed, env.Scheme)
	}

	derived, err := util.DeriveArgon2idKey(passphrase, env.Salt, env.KDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer util.WipeBytes(derived)

	keyPEM, err := util.DecryptAES(env.Ciphertext, derived, []byte(env.KeyID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	// NewBufferFromBytes wipes keyPEM after copying it into guarded memory.
	return &KeyHandle{
		keyID: env.KeyID,
		buf:   memguard.NewBufferFromBytes(keyPEM),
	}, nil
}

// PublicKey returns the CA public key line in authorized_keys format.
func (c *Custody) PublicKey() (string, error) {
	data, err := os.ReadFile(c.paths.CAPub())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotInitialized
		}
		return "", fmt.Errorf("reading CA public key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
