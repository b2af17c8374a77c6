package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// DigestSize is the length in bytes of a Digest.
const DigestSize = sha256.Size

// Digest returns the SHA-256 of secret. It is the same transformation browser clients apply to
// passwords and PINs before sending them, so DigestHex(x) is what arrives on the wire for x.
func Digest(secret []byte) []byte {
	h := sha256.Sum256(secret)
	return h[:]
}

// DigestHex returns the lowercase hex encoding of Digest(secret).
func DigestHex(secret string) string {
	return hex.EncodeToString(Digest([]byte(secret)))
}

// DigestHexEqual reports whether DigestHex(secret) equals stored, in constant time.
// An empty stored value never matches.
func DigestHexEqual(secret, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(DigestHex(secret)), []byte(stored)) == 1
}
