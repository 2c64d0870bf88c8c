package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks values written by Sealer. Values without it are treated
// as legacy plaintext so existing rows keep working after sealing is enabled.
const sealedPrefix = "sealed:v1:"

var (
	ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")
	ErrDecryptFailed      = errors.New("cryptox: decrypt failed")
)

// Sealer encrypts short attribute values with XChaCha20-Poly1305. The
// associated data binds a ciphertext to the row it was written for, so a
// value copied to another user or attribute fails to open.
type Sealer struct {
	key []byte
}

// NewSealer derives a 32-byte key from keyMaterial using SHA-256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty key material")
	}
	sum := sha256.Sum256(keyMaterial)
	return &Sealer{key: sum[:]}, nil
}

// LoadSealer builds a Sealer from the key file at path. When path is empty the
// TWOFACTOR_MASTER_KEY environment variable is used instead. It returns
// (nil, nil) when neither is set, meaning values are stored unsealed.
func LoadSealer(path string) (*Sealer, error) {
	var keyMaterial []byte

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		keyMaterial = data
	} else if envKey := os.Getenv("TWOFACTOR_MASTER_KEY"); envKey != "" {
		keyMaterial = []byte(envKey)
	} else {
		return nil, nil
	}

	return NewSealer(keyMaterial)
}

// Seal encrypts plaintext and returns a printable, prefixed value.
// The output format before encoding is: [24-byte nonce][ciphertext][16-byte tag]
func (s *Sealer) Seal(plaintext, associatedData string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonceSize := aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out = aead.Seal(out, out[:nonceSize], []byte(plaintext), []byte(associatedData))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values that were never sealed are returned unchanged.
func (s *Sealer) Open(value, associatedData string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}

	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonceSize := aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", ErrCiphertextTooShort
	}

	plain, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(associatedData))
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plain), nil
}

// IsSealed reports whether value carries the Sealer prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
