// Package auth — one-time codes and password reset tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/xid"
)

// OTPTTL is how long an emailed verification code stays valid.
const OTPTTL = 10 * time.Minute

// MaxOTPAttempts is the number of wrong codes allowed before a fresh OTP
// must be requested.
const MaxOTPAttempts = 3

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = 1 * time.Hour

// GenerateOTP returns a random 6-digit verification code, zero-padded.
//
// crypto/rand (not math/rand): the code gates account verification, so it
// must be unpredictable.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("auth: generating OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewResetToken returns a fresh password reset token and the SHA-256 digest
// of it. Only the digest is stored; the plaintext goes into the reset email
// and is never persisted. A leaked database therefore can't be replayed
// into account takeovers.
//
// Two xids back to back give ~120 bits of URL-safe randomness.
func NewResetToken() (token, digest string) {
	token = xid.New().String() + xid.New().String()
	return token, HashResetToken(token)
}

// HashResetToken returns the hex SHA-256 digest used to look a token up.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
