package custody

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/config"
	"github.com/vaultmark/vaultmark/internal/util"
)

func fastKDFParams() util.Argon2idParams {
	p := util.DefaultArgon2idParams()
	p.MemoryKiB = 8 * 1024
	return p
}

func newTestCustody(t *testing.T) *Custody {
	t.Helper()
	return New(config.Paths{Root: t.TempDir()}, WithKDFParams(fastKDFParams()))
}

func TestInitUnlock_RoundTrip(t *testing.T) {
	c := newTestCustody(t)

	pub, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)
	assert.Contains(t, pub, "ssh-ed25519 ")
	assert.Contains(t, pub, "test-ca")
	assert.True(t, c.Initialized())

	h1, err := c.Unlock("hunter2")
	require.NoError(t, err)
	first := append([]byte(nil), h1.Bytes()...)
	h1.Close()

	h2, err := c.Unlock("hunter2")
	require.NoError(t, err)
	defer h2.Close()

	assert.Equal(t, first, h2.Bytes(), "unlock must return bit-identical key material")
	assert.Equal(t, "test-ca", h2.KeyID())

	signer, err := h2.Signer()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}

func TestUnlock_WrongPassphrase(t *testing.T) {
	c := newTestCustody(t)
	_, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	h, err := c.Unlock("wrong")
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestUnlock_NotInitialized(t *testing.T) {
	c := newTestCustody(t)

	_, err := c.Unlock("hunter2")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NotErrorIs(t, err, ErrAuthenticationFailed)
}

func TestUnlock_TamperedEnvelope(t *testing.T) {
	c := newTestCustody(t)
	_, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	paths := config.Paths{Root: c.paths.Root}
	data, err := os.ReadFile(paths.CAKey())
	require.NoError(t, err)
	data[len(data)-10] ^= 0xff
	require.NoError(t, os.WriteFile(paths.CAKey(), data, 0o600))

	_, err = c.Unlock("hunter2")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestUnlock_TruncatedEnvelope(t *testing.T) {
	c := newTestCustody(t)
	_, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(c.paths.CAKey(), []byte("{"), 0o600))

	_, err = c.Unlock("hunter2")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestInit_RequiresForceToRotate(t *testing.T) {
	c := newTestCustody(t)

	firstPub, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	_, err = c.Init("hunter2", "test-ca")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	secondPub, err := c.Init("new-passphrase", "test-ca", WithForce())
	require.NoError(t, err)
	assert.NotEqual(t, firstPub, secondPub, "rotation must produce a new keypair")

	// The old passphrase no longer unlocks anything.
	_, err = c.Unlock("hunter2")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	h, err := c.Unlock("new-passphrase")
	require.NoError(t, err)
	h.Close()
}

func TestKeyHandle_CloseIdempotent(t *testing.T) {
	c := newTestCustody(t)
	_, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	h, err := c.Unlock("hunter2")
	require.NoError(t, err)

	h.Close()
	h.Close()

	assert.Nil(t, h.Bytes())
	_, err = h.Signer()
	assert.Error(t, err)
}

func TestPublicKey(t *testing.T) {
	c := newTestCustody(t)

	_, err := c.PublicKey()
	assert.True(t, errors.Is(err, ErrNotInitialized))

	pub, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	got, err := c.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, pub, got)
}

func TestCAKeyFilePermissions(t *testing.T) {
	c := newTestCustody(t)
	_, err := c.Init("hunter2", "test-ca")
	require.NoError(t, err)

	info, err := os.Stat(c.paths.CAKey())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
