package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/service"
)

// AuthHandler exposes the account lifecycle over HTTP.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup         → create an account, send the verification OTP
//   - HandleVerifyEmail    → redeem the OTP, mark the account verified
//   - HandleResendOTP      → mint and mail a fresh OTP
//   - HandleLogin          → email-or-username + password, returns a JWT
//   - HandleMe             → the logged-in user's profile
//   - HandleForgotPassword → start the reset flow (always reports success)
//   - HandleResetPassword  → redeem a reset token, set a new password
//
// The handler only parses requests and writes responses; every rule about
// passwords, OTP attempts, and token expiry lives in service.AuthService.
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// HandleSignup registers a new account.
//
// HTTP: POST /api/auth/signup
// Body: {"email": "...", "username": "...", "password": "..."}
//
// Responds 201 with the user and a JWT. The account starts unverified; the
// token carries verified=false until the OTP is redeemed.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authSvc.Signup(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleVerifyEmail redeems the OTP sent at signup.
//
// HTTP: POST /api/auth/verify-email
// Body: {"email": "...", "code": "123456"}
//
// On success the response carries a fresh JWT with verified=true, so the
// client can swap tokens without a re-login.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authSvc.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleResendOTP mails a fresh verification code.
//
// HTTP: POST /api/auth/resend-otp
// Body: {"email": "..."}
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.ResendOTP(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// HandleLogin authenticates by email or username.
//
// HTTP: POST /api/auth/login
// Body: {"login": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authSvc.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	user, err := h.authSvc.Me(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", ident.UserID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout ends the session from the API's point of view.
//
// HTTP: POST /api/auth/logout
// Auth: Required
//
// Tokens are stateless, so there is nothing to revoke server-side; the
// client discards its copy. The endpoint exists so clients have a uniform
// call to make and so a revocation store could slot in later without an API
// change.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleForgotPassword starts the password reset flow.
//
// HTTP: POST /api/password/forgot
// Body: {"email": "..."}
//
// Always responds 200 with the same message — whether or not the account
// exists. The endpoint must not confirm which emails are registered.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if that email is registered, a reset link has been sent",
	})
}

// HandleResetPassword redeems a reset token and sets a new password.
//
// HTTP: POST /api/password/reset
// Body: {"token": "...", "password": "..."}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}
