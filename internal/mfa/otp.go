package mfa

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"smartbanker/backend/internal/security"
)

const (
	otpDigits = 6
	otpSpace  = 1_000_000
	// Largest multiple of otpSpace that fits in a uint32; draws at or above it are rejected
	// so every code is equally likely.
	otpLimit = (1 << 32) / otpSpace * otpSpace
)

// GenerateOTP returns a uniformly random 6-digit numeric OTP string (e.g. "012345").
// Uses crypto/rand for randomness.
func GenerateOTP() (string, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return "", err
		}
		n := binary.BigEndian.Uint32(b[:])
		if n < otpLimit {
			return fmt.Sprintf("%0*d", otpDigits, n%otpSpace), nil
		}
	}
}

// HashOTP returns the hex SHA-256 of the OTP. Only the hash is kept in a challenge.
func HashOTP(otp string) string {
	return security.DigestHex(otp)
}

// OTPEqual performs constant-time comparison of the provided OTP's hash with the stored hash.
func OTPEqual(providedOTP, storedHash string) bool {
	return security.DigestHexEqual(providedOTP, storedHash)
}
