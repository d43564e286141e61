package metadata

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// EncryptedManager wraps another Manager and transparently encrypts values
// with AES-256-GCM before Set and decrypts them after Get. The key is derived
// from a single static secret held by the app process; decryption failures
// propagate to the caller instead of being swallowed.
type EncryptedManager struct {
	inner Manager
	key   [32]byte
}

func NewEncryptedManager(inner Manager, secretKey string) *EncryptedManager {
	return &EncryptedManager{
		inner: inner,
		key:   sha256.Sum256([]byte(secretKey)),
	}
}

func (m *EncryptedManager) Get(ctx context.Context, key string) (string, bool, error) {
	ciphertext, found, err := m.inner.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}

	plaintext, err := m.decrypt(ciphertext)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt metadata value %q: %w", key, err)
	}

	return plaintext, true, nil
}

func (m *EncryptedManager) Set(ctx context.Context, key, value string) error {
	ciphertext, err := m.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt metadata value %q: %w", key, err)
	}
	return m.inner.Set(ctx, key, ciphertext)
}

func (m *EncryptedManager) Delete(ctx context.Context, key string) error {
	return m.inner.Delete(ctx, key)
}

func (m *EncryptedManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(m.key[:])
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *EncryptedManager) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(m.key[:])
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
