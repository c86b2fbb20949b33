package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionSecretEnv = "HUBRELAY_ENCRYPTION_SECRET"
	encryptionSaltEnv   = "HUBRELAY_ENCRYPTION_SALT"
	defaultSalt         = "hubrelay-webhook-store"
	pbkdf2Iterations    = 100000
	keySize             = 32
	nonceSize           = 12
	minSecretLength     = 16
)

// encryptor protects webhook endpoint URLs at rest. Webhook URLs embed the
// webhook token, so a leaked database must not expose them in the clear.
// Encryption is optional: with no secret configured values pass through.
type encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	secret := os.Getenv(encryptionSecretEnv)
	if secret == "" {
		return &encryptor{gcm: nil}, nil
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%s must be at least %d characters", encryptionSecretEnv, minSecretLength)
	}

	salt := os.Getenv(encryptionSaltEnv)
	if salt == "" {
		salt = defaultSalt
	}

	key := pbkdf2.Key([]byte(secret), []byte(salt), pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

// Enabled reports whether an encryption secret is configured.
func (e *encryptor) Enabled() bool {
	return e.gcm != nil
}

func (e *encryptor) EncryptIfEnabled(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

func (e *encryptor) DecryptIfEnabled(ciphertext string) (string, error) {
	if ciphertext == "" || e.gcm == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
