package credentials

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := NewVault("test-master-key")
	require.NoError(t, err)

	plaintext := []byte(`{"api_key":"abc","api_secret":"xyz"}`)
	ciphertext, nonce, salt, err := v.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	opened, err := v.Open(ciphertext, nonce, salt)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	v1, err := NewVault("key-one")
	require.NoError(t, err)
	v2, err := NewVault("key-two")
	require.NoError(t, err)

	ciphertext, nonce, salt, err := v1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = v2.Open(ciphertext, nonce, salt)
	assert.Error(t, err)
}

func TestNewVaultRequiresMasterKey(t *testing.T) {
	_, err := NewVault("")
	assert.Error(t, err)
}

func TestArtifactLifecycle(t *testing.T) {
	v, err := NewVault("test-master-key")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := v.WriteArtifact(dir, 42, []byte("plaintext-creds"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-creds", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, v.RemoveArtifact(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	assert.NoError(t, v.RemoveArtifact(path))
	assert.NoError(t, v.RemoveArtifact(""))
}
