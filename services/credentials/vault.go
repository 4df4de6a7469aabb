package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength       = 32
	saltLength      = 16
	pbkdf2Iteration = 100000
)

// Vault seals and opens broker credentials with a key derived from the
// configured master key. Decrypted payloads only ever exist in the ephemeral
// artifact files written for a running service instance.
type Vault struct {
	masterKey []byte
}

// NewVault creates a vault from the configured master key
func NewVault(masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("credential master key is not configured")
	}
	return &Vault{masterKey: []byte(masterKey)}, nil
}

// Seal encrypts a plaintext credential payload. Returns the ciphertext along
// with the nonce and salt needed to open it again.
func (v *Vault) Seal(plaintext []byte) (ciphertext, nonce, salt []byte, err error) {
	salt = make([]byte, saltLength)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := v.cipherFor(salt)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, salt, nil
}

// Open decrypts a sealed credential payload
func (v *Vault) Open(ciphertext, nonce, salt []byte) ([]byte, error) {
	gcm, err := v.cipherFor(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return plaintext, nil
}

// WriteArtifact writes a decrypted credential to an ephemeral file readable
// only by this process. The caller owns removal.
func (v *Vault) WriteArtifact(dir string, tenantID uint, plaintext []byte) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("tenant_%d_credentials", tenantID))
	if err := os.WriteFile(path, plaintext, 0600); err != nil {
		return "", fmt.Errorf("failed to write credential artifact: %w", err)
	}
	return path, nil
}

// RemoveArtifact deletes an ephemeral credential file. Missing files are not
// an error.
func (v *Vault) RemoveArtifact(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential artifact: %w", err)
	}
	return nil
}

func (v *Vault) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.masterKey, salt, pbkdf2Iteration, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to build GCM: %w", err)
	}
	return gcm, nil
}
