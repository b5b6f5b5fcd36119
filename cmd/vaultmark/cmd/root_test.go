package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassphraseFromEnv(t *testing.T) {
	t.Setenv("VAULTMARK_PASSPHRASE", "hunter2")

	pass, err := readPassphrase("ignored: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pass)
}

func TestResolvePathsFlag(t *testing.T) {
	dir := t.TempDir()
	old := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = old })

	paths, err := resolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, paths.Root)
}

func TestResolvePathsDefault(t *testing.T) {
	old := dataDir
	dataDir = ""
	t.Cleanup(func() { dataDir = old })

	paths, err := resolvePaths()
	require.NoError(t, err)
	assert.Contains(t, paths.Root, ".vaultmark")
}
