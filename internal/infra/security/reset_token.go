package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// ResetToken is a freshly minted password-reset secret. Only Digest is ever persisted.
type ResetToken struct {
	Plain  string
	Digest string
}

// NewResetToken draws byteLength random bytes, hex-encodes them and computes the storage digest.
func NewResetToken(byteLength int) (ResetToken, error) {
	if byteLength <= 0 {
		return ResetToken{}, fmt.Errorf("reset token length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("read random bytes: %w", err)
	}

	plain := hex.EncodeToString(buf)
	return ResetToken{Plain: plain, Digest: DigestResetToken(plain)}, nil
}

// DigestResetToken returns the hex SHA-256 digest stored in place of a reset token.
func DigestResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// ResetTokenMatches compares a presented token against a stored digest in constant time.
func ResetTokenMatches(plain, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(DigestResetToken(plain)), []byte(digest)) == 1
}
