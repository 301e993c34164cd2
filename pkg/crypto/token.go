package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomToken returns a hex-encoded random token with n bytes of entropy.
// Used for invitation links.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
