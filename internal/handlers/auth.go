// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/services/account"
)

// AuthHandlers contains handlers for the account flows.
type AuthHandlers struct {
	accounts *account.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(accounts *account.Service) *AuthHandlers {
	return &AuthHandlers{accounts: accounts}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	EmailMobile string `json:"email_mobile"`
	Password    string `json:"password"`
}

// Login authenticates with email or mobile plus password.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.EmailMobile == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email_mobile and password are required"})
	}

	user, raw, err := h.accounts.Login(c.Request().Context(), req.EmailMobile, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: raw, User: user})
}

// Logout revokes the session behind the presented bearer token.
func (h *AuthHandlers) Logout(c echo.Context) error {
	parts := strings.Fields(c.Request().Header.Get("Authorization"))
	if len(parts) != 2 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.Logout(c.Request().Context(), parts[1]); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandlers) Me(c echo.Context) error {
	identity := auth.IdentityFrom(c.Request().Context())
	return c.JSON(http.StatusOK, identity.User)
}

// DestinationRequest carries a bare email or mobile number.
type DestinationRequest struct {
	EmailMobile string `json:"email_mobile"`
}

// SendLoginCode sends a one-time login code to an existing user.
func (h *AuthHandlers) SendLoginCode(c echo.Context) error {
	var req DestinationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.SendLoginCode(c.Request().Context(), req.EmailMobile); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "code sent"})
}

// CodeLoginRequest is the request body for one-time-code login.
type CodeLoginRequest struct {
	EmailMobile string `json:"email_mobile"`
	OTP         string `json:"otp"`
}

// LoginWithCode authenticates with a previously sent one-time code.
func (h *AuthHandlers) LoginWithCode(c echo.Context) error {
	var req CodeLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, raw, err := h.accounts.LoginWithCode(c.Request().Context(), req.EmailMobile, req.OTP)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: raw, User: user})
}

// PreRegister sends a verification code to a new email or mobile.
func (h *AuthHandlers) PreRegister(c echo.Context) error {
	var req DestinationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.PreRegister(c.Request().Context(), req.EmailMobile); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "code sent"})
}

// VerifyPreRegisterRequest is the request body for checking a
// pre-registration code.
type VerifyPreRegisterRequest struct {
	EmailMobile string `json:"email_mobile"`
	OTP         string `json:"otp"`
}

// VerifyPreRegister checks the pre-registration code without consuming it.
func (h *AuthHandlers) VerifyPreRegister(c echo.Context) error {
	var req VerifyPreRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.VerifyPreRegister(c.Request().Context(), req.EmailMobile, req.OTP); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}

// RegisterRequest is the request body for completing registration.
type RegisterRequest struct {
	EmailMobile string `json:"email_mobile"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
	OTP         string `json:"otp"`
}

// Register consumes the pre-registration code and creates the account.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, raw, err := h.accounts.Register(c.Request().Context(), account.RegisterParams{
		Destination: req.EmailMobile,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
		Code:        req.OTP,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResponse{Token: raw, User: user})
}

// SendVerifyEmail mails a verification code to the authenticated user.
func (h *AuthHandlers) SendVerifyEmail(c echo.Context) error {
	identity := auth.IdentityFrom(c.Request().Context())
	if err := h.accounts.SendVerifyEmail(c.Request().Context(), identity.User); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "code sent"})
}

// CodeRequest carries a bare one-time code.
type CodeRequest struct {
	OTP string `json:"otp"`
}

// VerifyEmail consumes the emailed code and marks the email verified.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req CodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	identity := auth.IdentityFrom(c.Request().Context())
	if err := h.accounts.VerifyEmailCode(c.Request().Context(), identity.User, req.OTP); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "email verified"})
}

// VerifyEmailToken verifies the signed link token from a verification
// email. This route is unauthenticated; the token itself carries the proof.
func (h *AuthHandlers) VerifyEmailToken(c echo.Context) error {
	user, err := h.accounts.VerifyEmailToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "email verified", "user": user})
}

// SendVerifyMobile sends a verification code to the authenticated user's
// mobile.
func (h *AuthHandlers) SendVerifyMobile(c echo.Context) error {
	identity := auth.IdentityFrom(c.Request().Context())
	if err := h.accounts.SendVerifyMobile(c.Request().Context(), identity.User); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "code sent"})
}

// VerifyMobile consumes the code and marks the mobile verified.
func (h *AuthHandlers) VerifyMobile(c echo.Context) error {
	var req CodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	identity := auth.IdentityFrom(c.Request().Context())
	if err := h.accounts.VerifyMobile(c.Request().Context(), identity.User, req.OTP); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "mobile verified"})
}

// ForgetPassword starts a password reset for the given email or mobile.
func (h *AuthHandlers) ForgetPassword(c echo.Context) error {
	var req DestinationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.SendForgetPassword(c.Request().Context(), req.EmailMobile); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset sent"})
}

// ResetPasswordCodeRequest is the request body for a mobile code reset.
type ResetPasswordCodeRequest struct {
	Mobile      string `json:"mobile"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// ResetPasswordWithCode consumes a mobile reset code and sets the new
// password.
func (h *AuthHandlers) ResetPasswordWithCode(c echo.Context) error {
	var req ResetPasswordCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.ResetPasswordWithCode(c.Request().Context(), req.Mobile, req.OTP, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "password reset"})
}

// ResetPasswordTokenRequest is the request body for an email token reset.
type ResetPasswordTokenRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPasswordWithToken consumes an emailed reset token and sets the new
// password.
func (h *AuthHandlers) ResetPasswordWithToken(c echo.Context) error {
	var req ResetPasswordTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.accounts.ResetPasswordWithToken(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "password reset"})
}
