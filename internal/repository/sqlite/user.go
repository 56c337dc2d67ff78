package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, password_hash, email_verified,
	otp_code, otp_expires_at, otp_attempts,
	reset_token_hash, reset_expires_at, local_migrated,
	created_at, updated_at`

// scanUser reads one users row. The OTP/reset expiry columns are nullable.
func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var otpExpires, resetExpires sql.NullTime

	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.EmailVerified,
		&u.OTPCode, &otpExpires, &u.OTPAttempts,
		&u.ResetHash, &resetExpires, &u.LocalMigrated,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if otpExpires.Valid {
		u.OTPExpiresAt = &otpExpires.Time
	}
	if resetExpires.Valid {
		u.ResetExpires = &resetExpires.Time
	}
	return &u, nil
}

// Create inserts a new (unverified) user. The caller supplies email,
// username, password hash, and the initial OTP state; the id and
// timestamps are generated here.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.NewString()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, email_verified,
			otp_code, otp_expires_at, otp_attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.EmailVerified,
		user.OTPCode, user.OTPExpiresAt, user.OTPAttempts, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetByID retrieves a user by their internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByLogin looks a user up by email or username, whichever matches.
// Emails are stored lowercase, so the email side compares case-folded;
// usernames match exactly.
func (db *DB) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = LOWER(?) OR username = ?`,
		login, login)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", login)
		}
		return nil, fmt.Errorf("sqlite: getting user by login: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// Taken reports whether the email or username is already registered.
// One query instead of two — signup calls this on every attempt.
func (db *DB) Taken(ctx context.Context, email, username string) (bool, bool, error) {
	var emailCount, usernameCount int
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN email = ? THEN 1 END),
			COUNT(CASE WHEN username = ? THEN 1 END)
		 FROM users WHERE email = ? OR username = ?`,
		email, username, email, username,
	).Scan(&emailCount, &usernameCount)
	if err != nil {
		return false, false, fmt.Errorf("sqlite: checking email/username: %w", err)
	}
	return emailCount > 0, usernameCount > 0, nil
}

// SetOTP stores a fresh verification code and resets the attempt counter.
func (db *DB) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET otp_code = ?, otp_expires_at = ?, otp_attempts = 0, updated_at = ?
		 WHERE id = ?`,
		code, expiresAt, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting OTP for user %s: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// BumpOTPAttempts increments the wrong-code counter and returns the new value.
func (db *DB) BumpOTPAttempts(ctx context.Context, userID string) (int, error) {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET otp_attempts = otp_attempts + 1 WHERE id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: bumping OTP attempts for user %s: %w", userID, err)
	}

	var attempts int
	err = db.conn.QueryRowContext(ctx,
		`SELECT otp_attempts FROM users WHERE id = ?`, userID).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading OTP attempts for user %s: %w", userID, err)
	}
	return attempts, nil
}

// MarkVerified sets the verified flag and clears all OTP state.
func (db *DB) MarkVerified(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email_verified = 1, otp_code = '', otp_expires_at = NULL,
		     otp_attempts = 0, updated_at = ?
		 WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking user %s verified: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// SetResetToken stores the reset token digest and its expiry.
func (db *DB) SetResetToken(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		digest, expiresAt, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting reset token for user %s: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// GetByResetDigest finds the user holding a reset token with this digest.
// Expiry is checked by the caller against ResetExpires.
func (db *DB) GetByResetDigest(ctx context.Context, digest string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token_hash = ? AND reset_token_hash != ''`, digest)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("reset token", "")
		}
		return nil, fmt.Errorf("sqlite: getting user by reset digest: %w", err)
	}
	return u, nil
}

// ReplacePassword swaps the password hash and clears the reset token in the
// same statement — a used token can never be replayed.
func (db *DB) ReplacePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = ?, reset_token_hash = '', reset_expires_at = NULL,
		     updated_at = ?
		 WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: replacing password for user %s: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// MarkLocalMigrated flags the one-time localStorage import as done.
func (db *DB) MarkLocalMigrated(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET local_migrated = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking user %s migrated: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}

// requireRow converts a zero-rows-affected result into ErrNotFound.
// Shared by every ownership-scoped UPDATE/DELETE in this package.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
