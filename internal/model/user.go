// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// A user is created unverified at signup. A 6-digit OTP emailed to them
// verifies the address; the OTP fields are cleared once verification
// succeeds. The reset fields hold only a SHA-256 digest of the password
// reset token — the plaintext token lives exclusively in the email we send.
//
// Fields tagged `json:"-"` never leave the server. The password hash, OTP
// state, and reset token digest are internal bookkeeping; serializing them
// into an API response would be a credential leak.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	EmailVerified bool       `json:"emailVerified"`
	OTPCode       string     `json:"-"`
	OTPExpiresAt  *time.Time `json:"-"`
	OTPAttempts   int        `json:"-"`
	ResetHash     string     `json:"-"`
	ResetExpires  *time.Time `json:"-"`
	LocalMigrated bool       `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
