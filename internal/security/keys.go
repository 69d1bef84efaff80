package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSessionToken returns a 20-byte random bearer token encoded as
// lowercase base32. Only its hash is ever persisted.
func GenerateSessionToken() string {
	return strings.ToLower(base32NoPad.EncodeToString(randomBytes(20)))
}

// SessionID derives the storage id for a token: SHA-256, lowercase hex.
func SessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateOTP returns an 8-character uppercase one-time code.
func GenerateOTP() string {
	return base32NoPad.EncodeToString(randomBytes(5))
}

// GenerateRecoveryCode returns a prefixed high-entropy recovery credential.
func GenerateRecoveryCode() string {
	return "rc_" + strings.ToLower(base32NoPad.EncodeToString(randomBytes(24)))
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return buf
}
