package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// AlphanumericAlphabet is the 62-symbol alphabet used for tokens and session ids.
	AlphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	AccessTokenLength = 80
	SessionIDLength   = 40
)

// GenerateRandomString draws length symbols uniformly from alphabet using crypto/rand.
func GenerateRandomString(alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	if len(alphabet) < 2 {
		return "", fmt.Errorf("alphabet must contain at least two symbols")
	}

	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}

	return string(out), nil
}

// GenerateAccessToken returns a fresh 80-character opaque token.
func GenerateAccessToken() (string, error) {
	return GenerateRandomString(AlphanumericAlphabet, AccessTokenLength)
}

// GenerateSessionID returns a fresh 40-character session identifier.
func GenerateSessionID() (string, error) {
	return GenerateRandomString(AlphanumericAlphabet, SessionIDLength)
}

// IsAlphanumeric reports whether value only uses AlphanumericAlphabet symbols.
func IsAlphanumeric(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
