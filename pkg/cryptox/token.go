package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (32 hex chars).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (64 hex chars).
	TokenSize256 = 32
)

// GenerateHex creates a cryptographically secure random value of size bytes
// and returns it hex encoded (2*size characters).
func GenerateHex(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// HexSource is a random source backed by crypto/rand.
type HexSource struct{}

// Hex returns byteLen random bytes hex encoded.
func (HexSource) Hex(byteLen int) (string, error) {
	return GenerateHex(byteLen)
}

// EqualConstantTime reports whether a and b are equal without leaking the
// position of the first difference. Length is still observable.
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
