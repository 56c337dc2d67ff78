// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept primitives and return domain errors from the apperror
// package; they know nothing about HTTP. Handlers translate those errors to
// status codes. Repositories are injected as interfaces so tests can swap
// in in-memory mocks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/study-tracker/internal/apperror"
	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/email"
	"github.com/sakif/study-tracker/internal/model"
	"github.com/sakif/study-tracker/internal/repository"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

// disposableDomains are throwaway email providers rejected at signup.
// Accounts behind them can never complete OTP verification meaningfully.
var disposableDomains = map[string]bool{
	"mailinator.com":     true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"tempmail.com":       true,
	"temp-mail.org":      true,
	"yopmail.com":        true,
	"trashmail.com":      true,
	"sharklasers.com":    true,
	"getnada.com":        true,
	"throwawaymail.com":  true,
	"fakeinbox.com":      true,
	"maildrop.cc":        true,
	"dispostable.com":    true,
	"mintemail.com":      true,
	"mytemp.email":       true,
	"spamgourmet.com":    true,
	"mailcatch.com":      true,
	"tempinbox.com":      true,
	"emailondeck.com":    true,
	"burnermail.io":      true,
}

// AuthService handles signup, verification, login, and password recovery.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    email.Mailer
	appURL    string // frontend base URL, used in reset links
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer email.Mailer,
	appURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		appURL:    strings.TrimRight(appURL, "/"),
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) issueToken(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Verified: user.EmailVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Signup validates the registration input, creates an unverified account,
// and sends the verification OTP.
//
// The OTP email is best-effort: if the mail server is down the account is
// still created and the user can hit resend-otp later. Losing signups over
// a mail outage is the worse failure mode.
func (s *AuthService) Signup(ctx context.Context, emailAddr, username, password string) (*AuthResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	username = strings.TrimSpace(username)

	if !emailPattern.MatchString(emailAddr) {
		return nil, apperror.ValidationFailed("email", "invalid email address")
	}
	if domain := emailAddr[strings.LastIndex(emailAddr, "@")+1:]; disposableDomains[domain] {
		return nil, apperror.ValidationFailed("email", "disposable email addresses are not allowed")
	}
	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			"username must be 3-30 characters: letters, digits, and underscores only")
	}
	if reason := auth.ValidatePassword(password); reason != "" {
		return nil, apperror.ValidationFailed("password", reason)
	}

	emailTaken, usernameTaken, err := s.users.Taken(ctx, emailAddr, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking email/username: %w", err)
	}
	if emailTaken {
		return nil, apperror.Conflict("email is already registered")
	}
	if usernameTaken {
		return nil, apperror.Conflict("username is already taken")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	otpExpiry := time.Now().UTC().Add(auth.OTPTTL)

	user := &model.User{
		Email:        emailAddr,
		Username:     username,
		PasswordHash: hash,
		OTPCode:      code,
		OTPExpiresAt: &otpExpiry,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", emailAddr, err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Username, code); err != nil {
		s.logger.Warn("OTP email failed at signup — user can request a resend",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issueToken(user)
}

// VerifyEmail checks the submitted OTP and marks the account verified.
//
// Three wrong codes exhaust the attempt budget; after that even the correct
// code is rejected until resend-otp mints a fresh one.
func (s *AuthService) VerifyEmail(ctx context.Context, emailAddr, code string) (*AuthResult, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, apperror.Conflict("email is already verified")
	}
	if user.OTPCode == "" || user.OTPExpiresAt == nil {
		return nil, apperror.ValidationFailed("code", "no verification code pending; request a new one")
	}
	if user.OTPAttempts >= auth.MaxOTPAttempts {
		return nil, apperror.TooManyAttempts("verification attempts exhausted; request a new code")
	}
	if time.Now().After(*user.OTPExpiresAt) {
		return nil, apperror.ValidationFailed("code", "verification code expired; request a new one")
	}

	if code != user.OTPCode {
		attempts, err := s.users.BumpOTPAttempts(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("service/auth: recording failed attempt: %w", err)
		}
		remaining := auth.MaxOTPAttempts - attempts
		if remaining <= 0 {
			return nil, apperror.TooManyAttempts("verification attempts exhausted; request a new code")
		}
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("invalid verification code, %d attempts remaining", remaining))
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("service/auth: marking user verified: %w", err)
	}
	user.EmailVerified = true

	s.logger.Info("email verified", slog.String("userID", user.ID))
	return s.issueToken(user)
}

// ResendOTP regenerates the verification code and resets the attempt
// counter. Unlike signup, a mail failure here is surfaced — the user asked
// for this email specifically.
func (s *AuthService) ResendOTP(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperror.Conflict("email is already verified")
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	if err := s.users.SetOTP(ctx, user.ID, code, time.Now().UTC().Add(auth.OTPTTL)); err != nil {
		return fmt.Errorf("service/auth: storing new OTP: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Username, code); err != nil {
		return fmt.Errorf("service/auth: sending OTP email: %w", err)
	}
	return nil
}

// Login authenticates by email or username plus password and issues a
// 7-day token. Both unknown accounts and wrong passwords produce the same
// generic error — no account probing through the login endpoint.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.ValidationFailed("login", "login and password are required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", login, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issueToken(user)
}

// Me returns the current user's record.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.users.GetByID(ctx, userID)
}

// ForgotPassword starts the reset flow. It deliberately reports success
// whether or not the email exists, so the endpoint can't be used to
// enumerate accounts. Only the token's SHA-256 digest is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil // generic success — do not reveal the account doesn't exist
		}
		return fmt.Errorf("service/auth: looking up %q: %w", emailAddr, err)
	}

	token, digest := auth.NewResetToken()
	expiry := time.Now().UTC().Add(auth.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, digest, expiry); err != nil {
		return fmt.Errorf("service/auth: storing reset token: %w", err)
	}

	link := s.appURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, link); err != nil {
		return fmt.Errorf("service/auth: sending reset email: %w", err)
	}

	s.logger.Info("password reset requested", slog.String("userID", user.ID))
	return nil
}

// ResetPassword redeems a reset token. The new password passes the same
// complexity rule as signup, and ReplacePassword clears the token in the
// same statement — a token works exactly once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperror.ValidationFailed("token", "reset token is required")
	}
	if reason := auth.ValidatePassword(newPassword); reason != "" {
		return apperror.ValidationFailed("password", reason)
	}

	user, err := s.users.GetByResetDigest(ctx, auth.HashResetToken(token))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("token", "invalid or expired reset token")
		}
		return fmt.Errorf("service/auth: looking up reset token: %w", err)
	}
	if user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		return apperror.ValidationFailed("token", "invalid or expired reset token")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing new password: %w", err)
	}
	if err := s.users.ReplacePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("service/auth: replacing password: %w", err)
	}

	s.logger.Info("password reset completed", slog.String("userID", user.ID))
	return nil
}
